// Command server runs the clinical data ingestion service: an HTTP API
// over the FTP ingestion pipeline with SSE progress streaming.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/helixsoft/clindata/internal/config"
	"github.com/helixsoft/clindata/internal/core"
	"github.com/helixsoft/clindata/internal/ftp"
	"github.com/helixsoft/clindata/internal/logging"
	"github.com/helixsoft/clindata/internal/web"
)

func main() {
	// .env values take precedence over inherited environment, which keeps
	// local development overrides simple. Missing file is fine.
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting clinical data service", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	registry, err := core.OpenProcessedRegistry(filepath.Join(cfg.Dirs.Download, "processed_files.txt"))
	if err != nil {
		return err
	}
	reporter := core.NewErrorReporter(filepath.Join(cfg.Dirs.Errors, "error_report.log"))

	pipeline, err := core.NewPipeline(cfg.Dirs.Download, cfg.Dirs.Archive, cfg.Dirs.Errors, registry, reporter)
	if err != nil {
		return err
	}

	coord := core.NewCoordinator(cfg.Pipeline.EventBuffer, cfg.Pipeline.RunRetention)
	service := core.NewService(ftp.NewDialer(cfg.FTP), pipeline, coord, registry, reporter)
	server := web.NewServer(cfg.Server, service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}
