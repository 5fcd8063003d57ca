package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned by Submit when a worker is already in flight.
// Operations are never queued; the caller may retry once the active run
// finishes.
var ErrBusy = errors.New("an operation is already in progress")

// ErrRunNotFound is returned when a run ID is unknown or its retention
// window has passed.
var ErrRunNotFound = errors.New("run not found")

// Operation is a unit of pipeline work executed by the single worker.
// It emits status events as it goes and returns the batch summary.
type Operation func(emit EmitFunc) BatchSummary

// Run is one worker execution. Its event channel is single-producer
// FIFO: events arrive in exactly the order the worker emitted them, and
// the channel closes when the run finishes.
type Run struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`

	events  chan StatusEvent
	done    chan struct{}
	summary BatchSummary
}

// Events returns the run's ordered event stream. The channel is closed
// once the terminal complete event has been delivered.
func (r *Run) Events() <-chan StatusEvent {
	return r.events
}

// Done is closed when the run has finished and its summary is available.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Summary blocks until the run finishes and returns its batch summary.
func (r *Run) Summary() BatchSummary {
	<-r.done
	return r.summary
}

// emit delivers an event to the run's channel. If the consumer has fallen
// more than the buffer capacity behind, the event is dropped rather than
// blocking the worker.
func (r *Run) emit(message string, severity Severity) {
	select {
	case r.events <- StatusEvent{Message: message, Severity: severity}:
	default:
		slog.Warn("event buffer full, dropping event",
			"run_id", r.ID, "message", message, "severity", severity)
	}
}

// Coordinator runs pipeline operations on a single background worker,
// guaranteeing at most one worker in flight. The busy flag flips via
// CompareAndSwap, so two near-simultaneous submissions cannot both start.
//
// Finished runs stay retrievable for a retention window so consumers can
// still subscribe to events or fetch the summary after the worker exits.
type Coordinator struct {
	busy        atomic.Bool
	eventBuffer int
	retention   time.Duration

	mu   sync.Mutex
	runs map[string]*Run
}

// NewCoordinator creates a coordinator whose runs carry event channels of
// the given capacity and stay retrievable for the retention window after
// finishing.
func NewCoordinator(eventBuffer int, retention time.Duration) *Coordinator {
	return &Coordinator{
		eventBuffer: eventBuffer,
		retention:   retention,
		runs:        make(map[string]*Run),
	}
}

// Submit starts op on the worker if no worker is active, returning the
// new run. Returns ErrBusy without starting anything when a worker is
// already in flight.
func (c *Coordinator) Submit(name string, op Operation) (*Run, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	run := &Run{
		ID:      uuid.New().String(),
		Name:    name,
		Started: time.Now(),
		events:  make(chan StatusEvent, c.eventBuffer),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.runs[run.ID] = run
	c.mu.Unlock()

	go c.work(run, op)

	slog.Info("worker started", "run_id", run.ID, "operation", name)
	return run, nil
}

// Run returns the run with the given ID, or ErrRunNotFound if it is
// unknown or already cleaned up.
func (c *Coordinator) Run(id string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, ok := c.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Busy reports whether a worker is currently in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// work executes op to completion. A panic inside the operation terminates
// the batch early with a single error event plus a forced complete event,
// so the coordinator is never left permanently busy.
func (c *Coordinator) work(run *Run, op Operation) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("worker panicked", "run_id", run.ID, "panic", rec)
			run.emit(fmt.Sprintf("Unexpected error: %v", rec), SeverityError)
			run.emit(fmt.Sprintf("%s terminated early", run.Name), SeverityComplete)
			run.summary.Finished = time.Now()
		}

		close(run.events)
		close(run.done)
		c.busy.Store(false)

		time.AfterFunc(c.retention, func() {
			c.mu.Lock()
			delete(c.runs, run.ID)
			c.mu.Unlock()
		})

		slog.Info("worker finished", "run_id", run.ID, "operation", run.Name)
	}()

	run.summary = op(run.emit)
}
