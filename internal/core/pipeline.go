package core

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileSource is the view of a remote session the pipeline needs: listing
// names and streaming a named file's bytes into a local sink.
type FileSource interface {
	List() ([]string, error)
	Retrieve(name string, sink io.Writer) error
}

// Pipeline routes each inspected file to the archive area (valid) or the
// error area (invalid), records archived names in the registry, and writes
// GUID-tagged entries to the error log for every rejection.
//
// Failures never abort a batch. Every failure becomes a status event and a
// summary count; the worker moves on to the next file.
type Pipeline struct {
	downloadDir string
	archiveDir  string
	errorDir    string
	registry    *ProcessedRegistry
	reporter    *ErrorReporter

	// now supplies the processing date used in archive names.
	now func() time.Time
}

// NewPipeline builds a pipeline over the three working directories,
// creating any that are absent. Each directory is a flat namespace.
func NewPipeline(downloadDir, archiveDir, errorDir string, registry *ProcessedRegistry, reporter *ErrorReporter) (*Pipeline, error) {
	for _, dir := range []string{downloadDir, archiveDir, errorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Pipeline{
		downloadDir: downloadDir,
		archiveDir:  archiveDir,
		errorDir:    errorDir,
		registry:    registry,
		reporter:    reporter,
		now:         time.Now,
	}, nil
}

// Process runs the full per-file state machine over files: download,
// filename check, content check, then archive (renamed with the current
// processing date) or error-area move plus an error-log entry. Archived
// names are added to the registry only after the move succeeds.
func (p *Pipeline) Process(src FileSource, files []string, emit EmitFunc) BatchSummary {
	summary := BatchSummary{Mode: ModeProcess, Started: p.now()}

	for _, filename := range files {
		if p.registry.Contains(filename) {
			emit(fmt.Sprintf("Skipping: %s (already processed)", filename), SeverityWarning)
			summary.Skipped++
			continue
		}

		emit(fmt.Sprintf("Processing: %s", filename), SeverityInfo)

		localPath := filepath.Join(p.downloadDir, filename)
		if err := p.download(src, filename, localPath); err != nil {
			emit(fmt.Sprintf("Download failed for %s: %v", filename, err), SeverityError)
			summary.Rejected++
			continue
		}
		emit("Downloaded successfully", SeveritySuccess)

		if !ValidFilename(filename) {
			emit("Invalid filename pattern (expected CLINICALDATAYYYYMMDDHHMMSS.CSV)", SeverityError)
			p.reject(filename, localPath, "Invalid filename pattern", emit)
			summary.Rejected++
			continue
		}
		emit("Filename pattern valid", SeveritySuccess)

		verdict, err := p.validateLocal(localPath, emit)
		if err != nil {
			emit(fmt.Sprintf("Error reading %s: %v", filename, err), SeverityError)
			removeIfExists(localPath)
			summary.Rejected++
			continue
		}

		if !verdict.Valid {
			p.reject(filename, localPath, rejectionMessage(verdict.Errors), emit)
			for _, msg := range firstN(verdict.Errors, 3) {
				emit(msg, SeverityError)
			}
			summary.Rejected++
			continue
		}

		archiveName, err := p.archive(filename, localPath)
		if err != nil {
			guid, logErr := p.reporter.Log(filename, fmt.Sprintf("Archival failed: %v", err))
			if logErr != nil {
				emit(fmt.Sprintf("Error log write failed: %v", logErr), SeverityError)
			}
			emit(fmt.Sprintf("Archival error for %s (GUID: %s)", filename, guid), SeverityError)
			removeIfExists(localPath)
			summary.Rejected++
			continue
		}

		if err := p.registry.Add(filename); err != nil {
			guid, logErr := p.reporter.Log(filename, fmt.Sprintf("Registry update failed after archive: %v", err))
			if logErr != nil {
				emit(fmt.Sprintf("Error log write failed: %v", logErr), SeverityError)
			}
			emit(fmt.Sprintf("Registry update failed for %s (GUID: %s)", filename, guid), SeverityError)
			summary.Rejected++
			continue
		}

		emit(fmt.Sprintf("Archived as: %s (%d records)", archiveName, verdict.ValidRecords), SeveritySuccess)
		summary.Archived++
	}

	emit("Processing complete", SeverityComplete)
	emit(fmt.Sprintf("Summary: %d archived, %d rejected, %d skipped",
		summary.Archived, summary.Rejected, summary.Skipped), SeveritySummary)

	summary.Finished = p.now()
	return summary
}

// Validate runs read-only diagnostics over files. Each file is inspected
// through a temporary local copy, deleted afterwards regardless of
// outcome. Nothing is moved and no durable state changes.
func (p *Pipeline) Validate(src FileSource, files []string, emit EmitFunc) BatchSummary {
	summary := BatchSummary{Mode: ModeValidate, Started: p.now()}

	for _, filename := range files {
		if p.registry.Contains(filename) {
			emit(fmt.Sprintf("Skipping: %s (already processed)", filename), SeverityWarning)
			summary.Skipped++
			continue
		}

		emit(fmt.Sprintf("Validating: %s", filename), SeverityInfo)

		tempPath := filepath.Join(p.downloadDir, "temp_validate_"+filename)
		if err := p.download(src, filename, tempPath); err != nil {
			emit(fmt.Sprintf("Error validating %s: %v", filename, err), SeverityError)
			summary.Invalid++
			continue
		}

		if !ValidFilename(filename) {
			emit("Invalid filename pattern (expected CLINICALDATAYYYYMMDDHHMMSS.CSV)", SeverityError)
			removeIfExists(tempPath)
			summary.Invalid++
			continue
		}
		emit("Filename pattern valid", SeveritySuccess)

		verdict, err := p.validateLocal(tempPath, emit)
		removeIfExists(tempPath)
		if err != nil {
			emit(fmt.Sprintf("Error validating %s: %v", filename, err), SeverityError)
			summary.Invalid++
			continue
		}

		if verdict.Valid {
			emit(fmt.Sprintf("VALID: %s (%d records)", filename, verdict.ValidRecords), SeveritySuccess)
			summary.Valid++
		} else {
			emit(fmt.Sprintf("INVALID: %s (%d errors)", filename, len(verdict.Errors)), SeverityError)
			summary.Invalid++
		}
	}

	emit("Validation complete", SeverityComplete)
	emit(fmt.Sprintf("Results: %d valid, %d invalid, %d skipped",
		summary.Valid, summary.Invalid, summary.Skipped), SeveritySummary)

	summary.Finished = p.now()
	return summary
}

// download streams the remote file to localPath, removing any partial
// artifact on failure.
func (p *Pipeline) download(src FileSource, filename, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}

	if err := src.Retrieve(filename, f); err != nil {
		f.Close()
		removeIfExists(localPath)
		return fmt.Errorf("retrieve %s: %w", filename, err)
	}

	if err := f.Close(); err != nil {
		removeIfExists(localPath)
		return fmt.Errorf("close %s: %w", localPath, err)
	}
	return nil
}

// validateLocal opens localPath, runs content validation, and emits the
// per-file diagnostic trace.
func (p *Pipeline) validateLocal(localPath string, emit EmitFunc) (Verdict, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Verdict{}, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	emit("Validating content...", SeverityInfo)
	verdict := ValidateContent(f)
	emitVerdictTrace(verdict, emit)
	return verdict, nil
}

// reject moves the raw file into the error area unmodified and writes one
// error-log entry for it. A failed move still produces the log entry; the
// partial artifact is cleaned up.
func (p *Pipeline) reject(filename, localPath, message string, emit EmitFunc) {
	if err := os.Rename(localPath, filepath.Join(p.errorDir, filename)); err != nil {
		emit(fmt.Sprintf("Failed to move %s to error area: %v", filename, err), SeverityError)
		removeIfExists(localPath)
	}

	guid, err := p.reporter.Log(filename, message)
	if err != nil {
		emit(fmt.Sprintf("Error log write failed: %v", err), SeverityError)
		return
	}
	emit(fmt.Sprintf("Rejected %s (GUID: %s)", filename, guid), SeverityError)
}

// archive renames localPath into the archive area as
// <base>_<YYYYMMDD>.<original extension>, dated by processing time.
func (p *Pipeline) archive(filename, localPath string) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	archiveName := fmt.Sprintf("%s_%s%s", base, p.now().Format("20060102"), ext)

	if err := os.Rename(localPath, filepath.Join(p.archiveDir, archiveName)); err != nil {
		return "", fmt.Errorf("archive %s: %w", filename, err)
	}
	return archiveName, nil
}

// emitVerdictTrace reports the bounded per-file diagnostic trace: header
// verdict, row and valid-record counts, and non-zero defect categories.
func emitVerdictTrace(v Verdict, emit EmitFunc) {
	if v.Rows == 0 && !v.Valid {
		// Header mismatch, empty file, or read failure: the single error
		// message is the whole trace.
		for _, msg := range v.Errors {
			emit(msg, SeverityError)
		}
		return
	}

	emit(fmt.Sprintf("Header valid (%d fields)", len(expectedHeader)), SeveritySuccess)
	emit(fmt.Sprintf("Scanned %d rows", v.Rows), SeverityInfo)
	emit(fmt.Sprintf("Valid records: %d", v.ValidRecords), SeveritySuccess)

	counts := []struct {
		label string
		n     int
	}{
		{"Field count errors", v.Defects.FieldCount},
		{"Missing fields", v.Defects.MissingFields},
		{"Dosage errors", v.Defects.Dosage},
		{"Date format errors", v.Defects.DateFormat},
		{"Date range errors", v.Defects.DateRange},
		{"Outcome errors", v.Defects.Outcome},
		{"Duplicates", v.Defects.Duplicate},
	}
	for _, c := range counts {
		if c.n > 0 {
			emit(fmt.Sprintf("%s: %d", c.label, c.n), SeverityError)
		}
	}
}

// rejectionMessage condenses a verdict's error list into one error-log
// message: the first three errors joined, plus a count of the rest.
func rejectionMessage(errs []string) string {
	msg := strings.Join(firstN(errs, 3), " | ")
	if len(errs) > 3 {
		msg += fmt.Sprintf(" ... and %d more", len(errs)-3)
	}
	return msg
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// removeIfExists deletes a partial local artifact. A missing file is fine;
// any other failure is logged and the next run overwrites the artifact.
func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove partial artifact", "path", path, "error", err)
	}
}
