package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/helixsoft/clindata/internal/config"
	"github.com/helixsoft/clindata/internal/core"
)

const goodCSV = "PatientID,TrialCode,DrugCode,Dosage_mg,StartDate,EndDate,Outcome,SideEffects,Analyst\n" +
	"P001,T01,D01,50,2024-01-01,2024-01-31,Improved,None,Smith\n"

// fakeSource serves remote files from memory.
type fakeSource struct {
	files map[string]string
}

func (f *fakeSource) List() ([]string, error) {
	var names []string
	for name := range f.files {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeSource) Retrieve(name string, sink io.Writer) error {
	content, ok := f.files[name]
	if !ok {
		return fmt.Errorf("no such file: %s", name)
	}
	_, err := io.WriteString(sink, content)
	return err
}

func newTestServer(t *testing.T, dial core.SessionFunc) *Server {
	t.Helper()
	root := t.TempDir()

	registry, err := core.OpenProcessedRegistry(filepath.Join(root, "downloads", "processed_files.txt"))
	if err != nil {
		t.Fatalf("OpenProcessedRegistry: %v", err)
	}
	reporter := core.NewErrorReporter(filepath.Join(root, "errors", "error_report.log"))

	pipeline, err := core.NewPipeline(
		filepath.Join(root, "downloads"),
		filepath.Join(root, "archive"),
		filepath.Join(root, "errors"),
		registry, reporter)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	coord := core.NewCoordinator(256, time.Minute)
	service := core.NewService(dial, pipeline, coord, registry, reporter)

	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, service)
}

func staticDialer(src core.FileSource) core.SessionFunc {
	return func(emit core.EmitFunc) (core.FileSource, func(), error) {
		return src, func() {}, nil
	}
}

func TestListFiles(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{files: map[string]string{
		"CLINICALDATA20240115093000.CSV": goodCSV,
	}}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Files []string `json:"files"`
		Count int      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 || len(body.Files) != 1 {
		t.Errorf("body = %+v, want one file", body)
	}
}

func TestListFilesConnectFailure(t *testing.T) {
	srv := newTestServer(t, func(emit core.EmitFunc) (core.FileSource, func(), error) {
		return nil, nil, fmt.Errorf("connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestStartProcessRun(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{files: map[string]string{
		"CLINICALDATA20240115093000.CSV": goodCSV,
	}}))

	body := strings.NewReader(`{"files":["CLINICALDATA20240115093000.CSV"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs/process", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("run_id missing")
	}

	// The summary endpoint blocks until the run finishes.
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/summary", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary core.BatchSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.Archived != 1 {
		t.Errorf("Archived = %d, want 1", summary.Archived)
	}
}

func TestStartRunValidation(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{}))

	tests := []struct {
		name string
		body string
	}{
		{"empty selection", `{"files":[]}`},
		{"malformed body", `{"files":`},
		{"no body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/runs/validate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestBusyWorkerYieldsConflict(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	srv := newTestServer(t, func(emit core.EmitFunc) (core.FileSource, func(), error) {
		close(started)
		<-release
		return nil, nil, fmt.Errorf("aborted")
	})
	defer close(release)

	body := strings.NewReader(`{"files":["a.CSV"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs/process", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first run status = %d", rec.Code)
	}
	<-started

	body = strings.NewReader(`{"files":["b.CSV"]}`)
	req = httptest.NewRequest(http.MethodPost, "/api/runs/validate", body)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("second run status = %d, want 409", rec.Code)
	}
}

func TestRunEventsStream(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{files: map[string]string{
		"CLINICALDATA20240115093000.CSV": goodCSV,
	}}))

	body := strings.NewReader(`{"files":["CLINICALDATA20240115093000.CSV"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs/process", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Buffered events survive run completion, so subscribing after the
	// worker finishes still replays the full stream.
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/events", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "data: ") {
		t.Errorf("stream has no events: %q", out)
	}
	if !strings.Contains(out, "event: complete") {
		t.Errorf("stream missing terminal complete event: %q", out)
	}
}

func TestRunEventsUnknownRun(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{}))

	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope/events", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRegistryAndErrorLogEndpoints(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{files: map[string]string{
		"badname.csv": goodCSV,
	}}))

	// Process a file that fails the filename check so both stores gain
	// content.
	body := strings.NewReader(`{"files":["badname.csv"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs/process", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/summary", nil)
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/registry", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("registry status = %d", rec.Code)
	}
	var reg struct {
		Files []string `json:"files"`
		Count int      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("unmarshal registry: %v", err)
	}
	if reg.Count != 0 {
		t.Errorf("rejected file must not be registered: %+v", reg)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/error-log", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("error-log status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid filename pattern") {
		t.Errorf("error log missing rejection entry: %q", rec.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, staticDialer(&fakeSource{}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Busy bool `json:"busy"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Busy {
		t.Error("idle service should report busy=false")
	}
}
