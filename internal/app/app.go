// Package app wires configuration, storage, the backend client and the HTTP
// surface into one runnable server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"animbridge/internal/retention"
	"animbridge/pkg/backend"
	"animbridge/pkg/banner"
	"animbridge/pkg/config"
	"animbridge/pkg/logger"
	"animbridge/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	store store.ThreadStore
	bc    *backend.Client
	srv   *http.Server
}

// New initializes resources that do not require a running context: config
// validation, logging and the thread store. Call Run to start the backend
// client, retention and the HTTP server.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	logger.Init(eff.Config.Logging.Level)

	var s store.ThreadStore
	if eff.DBPath != "" {
		ps, err := store.OpenPebble(eff.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
		}
		s = ps
	} else {
		logger.Warn("no_db_path_configured", "msg", "using in-memory thread store")
		s = store.NewMemory()
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, store: s}, nil
}

// Run starts the retention scheduler and the HTTP server, and blocks until
// ctx is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	// The backend client is optional at startup so operators can bring the
	// bridge up before the generation service exists; requests needing it
	// fail per-call with a configuration error.
	if a.eff.Config.Backend.URL != "" {
		bc, err := backend.New(ctx, a.eff.Config.Backend)
		if err != nil {
			return fmt.Errorf("backend client: %w", err)
		}
		a.bc = bc
	} else {
		logger.Warn("backend_not_configured", "msg", "generation requests will fail until BACKEND_SERVICE_URL is set")
	}

	stopRetention, err := retention.Start(ctx, a.eff.Config.Retention, a.store)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (a *App) shutdown() {
	logger.Info("server_shutting_down")
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Error("http_shutdown_failed", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}
