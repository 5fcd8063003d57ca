package config

import (
	"strings"
	"testing"
	"time"
)

// setRequired sets the env vars without defaults so Load can succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FTP_USER", "ingest")
	t.Setenv("FTP_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.FTP.Host != "localhost" {
		t.Errorf("FTP.Host = %q, want localhost", cfg.FTP.Host)
	}
	if cfg.FTP.Port != 21 {
		t.Errorf("FTP.Port = %d, want 21", cfg.FTP.Port)
	}
	if cfg.FTP.Timeout != 30*time.Second {
		t.Errorf("FTP.Timeout = %v, want 30s", cfg.FTP.Timeout)
	}
	if cfg.Pipeline.EventBuffer != 1024 {
		t.Errorf("Pipeline.EventBuffer = %d, want 1024", cfg.Pipeline.EventBuffer)
	}
	if cfg.Pipeline.RunRetention != 5*time.Minute {
		t.Errorf("Pipeline.RunRetention = %v, want 5m", cfg.Pipeline.RunRetention)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FTP_HOST", "ftp.example.org")
	t.Setenv("FTP_TIMEOUT", "10s")
	t.Setenv("FTP_REMOTE_DIR", "incoming")
	t.Setenv("DIR_DOWNLOAD", "/srv/clindata/downloads")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.FTP.Host != "ftp.example.org" {
		t.Errorf("FTP.Host = %q", cfg.FTP.Host)
	}
	if cfg.FTP.Timeout != 10*time.Second {
		t.Errorf("FTP.Timeout = %v, want 10s", cfg.FTP.Timeout)
	}
	if cfg.FTP.RemoteDir != "incoming" {
		t.Errorf("FTP.RemoteDir = %q", cfg.FTP.RemoteDir)
	}
	if cfg.Dirs.Download != "/srv/clindata/downloads" {
		t.Errorf("Dirs.Download = %q", cfg.Dirs.Download)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("FTP_USER", "")
	t.Setenv("FTP_PASSWORD", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without FTP credentials")
	} else if !strings.Contains(err.Error(), "FTP_USER") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "SERVER_PORT", "eighty"},
		{"bad duration", "FTP_TIMEOUT", "soon"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"zero event buffer", "PIPELINE_EVENT_BUFFER", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load should reject %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := s.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("ServerConfig.Addr() = %q", got)
	}

	f := FTPConfig{Host: "ftp.example.org", Port: 2121}
	if got := f.Addr(); got != "ftp.example.org:2121" {
		t.Errorf("FTPConfig.Addr() = %q", got)
	}
}

func TestStringMasksPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("FTP_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := cfg.String()
	if strings.Contains(s, "hunter2") {
		t.Error("String() must not expose the FTP password")
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() should mask the password: %s", s)
	}
}
