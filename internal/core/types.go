// Package core implements the clinical data ingestion domain: filename
// and content validation, the processed-file registry, the error log,
// the per-file ingestion state machine, and the single-worker coordinator
// that streams ordered status events to consumers.
package core

import "time"

// Severity classifies a status event for consumers of the event stream.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityComplete Severity = "complete"
	SeveritySummary  Severity = "summary"
)

// StatusEvent is one entry in a run's ordered event stream.
// Events are emitted in the order the work happens and delivered FIFO.
type StatusEvent struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// EmitFunc delivers a status event to the run's consumer.
type EmitFunc func(message string, severity Severity)

// Mode selects how a batch treats the files it inspects.
type Mode string

const (
	// ModeProcess downloads, validates, routes to archive or error area,
	// and records processed files durably.
	ModeProcess Mode = "process"

	// ModeValidate performs a read-only dry run. Files are inspected via
	// temporary copies and no durable state changes.
	ModeValidate Mode = "validate"
)

// DefectCounts tallies validation defects by category for a single file.
type DefectCounts struct {
	FieldCount    int `json:"field_count"`
	MissingFields int `json:"missing_fields"`
	Dosage        int `json:"dosage"`
	DateFormat    int `json:"date_format"`
	DateRange     int `json:"date_range"`
	Outcome       int `json:"outcome"`
	Duplicate     int `json:"duplicate"`
}

// Total returns the sum across all defect categories.
func (d DefectCounts) Total() int {
	return d.FieldCount + d.MissingFields + d.Dosage + d.DateFormat +
		d.DateRange + d.Outcome + d.Duplicate
}

// Verdict is the outcome of validating one file's content.
//
// Valid is true exactly when Errors is empty. Errors holds one message per
// defect in the order encountered, header errors first.
type Verdict struct {
	Valid        bool         `json:"valid"`
	Errors       []string     `json:"errors,omitempty"`
	ValidRecords int          `json:"valid_records"`
	Rows         int          `json:"rows"`
	Defects      DefectCounts `json:"defects"`
}

// BatchSummary is the terminal result of a run, available once the run's
// event channel has closed.
type BatchSummary struct {
	Mode     Mode      `json:"mode"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Process mode counts.
	Archived int `json:"archived"`
	Rejected int `json:"rejected"`

	// Validate mode counts.
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`

	// Skipped counts files already present in the processed registry.
	Skipped int `json:"skipped"`

	// Files holds the remote listing for list runs.
	Files []string `json:"files,omitempty"`
}
