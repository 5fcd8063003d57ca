package core

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrorReporter appends GUID-tagged entries to an unbounded error log.
// Entries are never mutated or removed; there is no rotation or size cap.
// The log file is owned exclusively by this reporter.
type ErrorReporter struct {
	path string
	now  func() time.Time
}

// NewErrorReporter creates a reporter appending to the log at path.
// The file is created on first write.
func NewErrorReporter(path string) *ErrorReporter {
	return &ErrorReporter{path: path, now: time.Now}
}

// Log appends one entry for filename with the given message and returns
// the fresh GUID assigned to it. The GUID is generated independently of
// the message, purely for support traceability.
func (e *ErrorReporter) Log(filename, message string) (string, error) {
	guid := uuid.New().String()
	line := fmt.Sprintf("[%s] GUID: %s | File: %s | Error: %s\n",
		e.now().Format("2006-01-02 15:04:05"), guid, filename, message)

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open error log %s: %w", e.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return "", fmt.Errorf("append error log %s: %w", e.path, err)
	}
	return guid, nil
}

// Path returns the location of the log file.
func (e *ErrorReporter) Path() string {
	return e.path
}
