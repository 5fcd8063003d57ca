// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	FTP      FTPConfig
	Dirs     DirConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// FTPConfig holds the remote file server session settings.
type FTPConfig struct {
	// Host is the FTP server hostname (default: localhost)
	Host string `env:"FTP_HOST" default:"localhost"`

	// Port is the FTP control port (default: 21)
	Port int `env:"FTP_PORT" default:"21"`

	// User is the FTP login name (required)
	User string `env:"FTP_USER" required:"true"`

	// Password is the FTP login password (required)
	Password string `env:"FTP_PASSWORD" required:"true"`

	// RemoteDir is an optional directory to change into after login.
	// A failed change is a warning, not a connection failure.
	RemoteDir string `env:"FTP_REMOTE_DIR"`

	// Timeout bounds the connect and read operations (default: 30s)
	Timeout time.Duration `env:"FTP_TIMEOUT" default:"30s"`
}

// DirConfig holds the local working directories.
// Each directory is created on startup if absent and used as a flat namespace.
type DirConfig struct {
	// Download is where retrieved files land before validation (default: data/downloads)
	Download string `env:"DIR_DOWNLOAD" default:"data/downloads"`

	// Archive is where validated files are renamed into (default: data/archive)
	Archive string `env:"DIR_ARCHIVE" default:"data/archive"`

	// Errors is where rejected files are moved, unmodified (default: data/errors)
	Errors string `env:"DIR_ERRORS" default:"data/errors"`
}

// PipelineConfig holds worker and event channel settings.
type PipelineConfig struct {
	// EventBuffer is the capacity of a run's status event channel (default: 1024)
	EventBuffer int `env:"PIPELINE_EVENT_BUFFER" default:"1024"`

	// RunRetention is how long a finished run stays available for
	// event subscription and summary retrieval (default: 5m)
	RunRetention time.Duration `env:"PIPELINE_RUN_RETENTION" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the FTP server address in host:port format.
func (c *FTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
