package core

import "fmt"

// ModeList marks a run that only lists the remote directory.
const ModeList Mode = "list"

// SessionFunc dials a fresh remote session for one run. It may emit
// connection progress events. On success it returns the file source and a
// best-effort cleanup function that closes the session; cleanup never
// panics and is safe to call exactly once.
type SessionFunc func(emit EmitFunc) (FileSource, func(), error)

// Service ties the coordinator, the pipeline, and the remote session
// factory into the three top-level operations: list, validate, process.
// Each operation is one worker run with its own session; a connection
// failure ends the run with an error event and the caller may retry.
type Service struct {
	dial     SessionFunc
	pipeline *Pipeline
	coord    *Coordinator
	registry *ProcessedRegistry
	reporter *ErrorReporter
}

// NewService wires a service from its collaborators.
func NewService(dial SessionFunc, pipeline *Pipeline, coord *Coordinator, registry *ProcessedRegistry, reporter *ErrorReporter) *Service {
	return &Service{
		dial:     dial,
		pipeline: pipeline,
		coord:    coord,
		registry: registry,
		reporter: reporter,
	}
}

// ListRemoteFiles starts a run that lists the remote CSV files. The
// sorted names appear in the run's summary.
func (s *Service) ListRemoteFiles() (*Run, error) {
	return s.coord.Submit("list", func(emit EmitFunc) BatchSummary {
		summary := BatchSummary{Mode: ModeList}

		src, cleanup, err := s.dial(emit)
		if err != nil {
			emit(fmt.Sprintf("Connection failed: %v", err), SeverityError)
			emit("Listing aborted", SeverityComplete)
			return summary
		}
		defer cleanup()

		names, err := src.List()
		if err != nil {
			emit(fmt.Sprintf("Failed to retrieve file list: %v", err), SeverityError)
			emit("Listing aborted", SeverityComplete)
			return summary
		}

		if len(names) == 0 {
			emit("No CSV files found", SeverityWarning)
		} else {
			emit(fmt.Sprintf("Found %d CSV files", len(names)), SeveritySuccess)
		}

		summary.Files = names
		emit("Listing complete", SeverityComplete)
		return summary
	})
}

// StartValidate starts a read-only validation run over files.
func (s *Service) StartValidate(files []string) (*Run, error) {
	return s.coord.Submit("validate", func(emit EmitFunc) BatchSummary {
		src, cleanup, err := s.dial(emit)
		if err != nil {
			emit(fmt.Sprintf("Connection failed: %v", err), SeverityError)
			emit("Validation aborted", SeverityComplete)
			return BatchSummary{Mode: ModeValidate}
		}
		defer cleanup()

		return s.pipeline.Validate(src, files, emit)
	})
}

// StartProcess starts a full processing run over files.
func (s *Service) StartProcess(files []string) (*Run, error) {
	return s.coord.Submit("process", func(emit EmitFunc) BatchSummary {
		src, cleanup, err := s.dial(emit)
		if err != nil {
			emit(fmt.Sprintf("Connection failed: %v", err), SeverityError)
			emit("Processing aborted", SeverityComplete)
			return BatchSummary{Mode: ModeProcess}
		}
		defer cleanup()

		return s.pipeline.Process(src, files, emit)
	})
}

// Run looks up an active or recently finished run by ID.
func (s *Service) Run(id string) (*Run, error) {
	return s.coord.Run(id)
}

// Busy reports whether a worker is in flight.
func (s *Service) Busy() bool {
	return s.coord.Busy()
}

// RegistryNames returns the processed filenames, sorted.
func (s *Service) RegistryNames() []string {
	return s.registry.Names()
}

// ErrorLogPath returns the location of the error log file.
func (s *Service) ErrorLogPath() string {
	return s.reporter.Path()
}
