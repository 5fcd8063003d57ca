package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/helixsoft/clindata/internal/core"
)

// runRequest is the body for starting a validate or process run.
type runRequest struct {
	Files []string `json:"files"`
}

// handleListFiles runs the remote listing operation and responds with the
// sorted CSV names once the run drains.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.ListRemoteFiles()
	if err != nil {
		if errors.Is(err, core.ErrBusy) {
			writeError(w, http.StatusConflict, "an operation is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The listing is short; drain the run inline instead of streaming.
	var lastError string
	for ev := range run.Events() {
		if ev.Severity == core.SeverityError {
			lastError = ev.Message
		}
	}

	summary := run.Summary()
	if summary.Files == nil && lastError != "" {
		writeError(w, http.StatusBadGateway, lastError)
		return
	}

	files := summary.Files
	if files == nil {
		files = []string{}
	}
	writeJSON(w, map[string]any{"files": files, "count": len(files)})
}

// handleStatus reports whether a worker is in flight.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"busy": s.service.Busy()})
}

func (s *Server) handleStartValidate(w http.ResponseWriter, r *http.Request) {
	s.startRun(w, r, s.service.StartValidate)
}

func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	s.startRun(w, r, s.service.StartProcess)
}

// startRun decodes the file selection and submits it to the coordinator.
// A busy worker yields 409; an accepted run yields 202 with the run ID.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request, start func([]string) (*core.Run, error)) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "no files selected")
		return
	}

	run, err := start(req.Files)
	if err != nil {
		if errors.Is(err, core.ErrBusy) {
			writeError(w, http.StatusConflict, "an operation is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"run_id":%q}`, run.ID)
}

// handleRunEvents streams a run's status events via Server-Sent Events
// until the run's channel closes, then sends a terminal complete event
// carrying the batch summary.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Run(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case ev, open := <-run.Events():
			if !open {
				payload, _ := json.Marshal(run.Summary())
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", payload)
				flusher.Flush()
				return
			}
			payload, _ := json.Marshal(ev)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleRunSummary blocks until the run finishes, then responds with its
// batch summary.
func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.Run(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	select {
	case <-run.Done():
		writeJSON(w, run.Summary())
	case <-r.Context().Done():
	}
}

// handleRegistry responds with the processed-file registry contents.
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	names := s.service.RegistryNames()
	writeJSON(w, map[string]any{"files": names, "count": len(names)})
}

// handleErrorLog serves the raw error log. A log that has never been
// written to reads as empty.
func (s *Server) handleErrorLog(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.service.ErrorLogPath())
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, "failed to read error log")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}
