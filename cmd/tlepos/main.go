package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/tlepos/internal/api"
	"github.com/star/tlepos/internal/config"
	"github.com/star/tlepos/internal/logging"
	"github.com/star/tlepos/internal/metrics"
	"github.com/star/tlepos/internal/observability"
	"github.com/star/tlepos/internal/query"
	"github.com/star/tlepos/internal/tle"
)

func main() {
	configPath := flag.String("config", "", "config file (YAML, JSON or TOML); overrides TLEPOS_CONFIG")
	flag.Parse()

	bootstrap := logging.New(logging.Config{}, os.Stdout)
	cfg, err := config.Load(*configPath, bootstrap)
	if err != nil {
		bootstrap.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, os.Stdout)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	cat := loadCatalog(cfg.CatalogPath, logger)

	rec, err := metrics.NewRecorder(nil)
	if err != nil {
		logger.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	opts := query.DefaultOptions()
	opts.Gravity = cfg.Propagation.Gravity
	opts.Workers = cfg.Propagation.Workers
	opts.Frames = cfg.Frames
	opts.Recorder = rec
	res := query.NewResolver(cat, opts, logger)

	srv := api.NewServer(cfg.HTTP, logger, cfg.Auth, res)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.Auth.Enabled, "catalog", cat.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)
		os.Exit(1)
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// loadCatalog reads the catalog at path. A missing or unreadable catalog
// leaves the service running with an empty catalog; /readyz reports it.
func loadCatalog(path string, logger *slog.Logger) *tle.Catalog {
	cat, err := tle.LoadCatalogFile(path, logger)
	if err != nil {
		logger.Warn("no catalog loaded, starting without TLE data", "path", path, "error", err)
		return tle.NewCatalog(nil)
	}
	logger.Info("catalog loaded",
		"path", path,
		"count", cat.Len(),
		"epoch_min", cat.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", cat.EpochRange.Max.Format(time.RFC3339),
	)
	return cat
}
