package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProcessedRegistry is the durable set of filenames that have been
// successfully archived. It is keyed by bare filename, not content, so a
// name present here is never reprocessed.
//
// The registry owns its backing file exclusively. Persistence is a full
// sorted newline-delimited snapshot rewritten on every addition; the
// at-most-one-worker rule keeps writes serialized across operations, and
// an internal mutex keeps the in-memory set consistent.
type ProcessedRegistry struct {
	mu    sync.Mutex
	path  string
	names map[string]bool
}

// OpenProcessedRegistry loads the registry snapshot at path. A missing
// file means an empty registry, not an error.
func OpenProcessedRegistry(path string) (*ProcessedRegistry, error) {
	r := &ProcessedRegistry{
		path:  path,
		names: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			r.names[line] = true
		}
	}
	return r, nil
}

// Contains reports whether name has already been archived.
func (r *ProcessedRegistry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[name]
}

// Add records name as archived and rewrites the full snapshot. Adding a
// name already present rewrites an identical snapshot and is not an error.
func (r *ProcessedRegistry) Add(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names[name] = true

	sorted := r.sortedLocked()
	content := strings.Join(sorted, "\n")
	if len(sorted) > 0 {
		content += "\n"
	}

	if err := os.WriteFile(r.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write registry %s: %w", r.path, err)
	}
	return nil
}

// Names returns the registered filenames sorted lexically.
func (r *ProcessedRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

// Len returns the number of registered filenames.
func (r *ProcessedRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

func (r *ProcessedRegistry) sortedLocked() []string {
	sorted := make([]string, 0, len(r.names))
	for name := range r.names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted
}
