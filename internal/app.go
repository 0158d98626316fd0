// Package internal wires the sigil server together.
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"sigil/internal/avatars"
	"sigil/internal/config"
	"sigil/internal/database"
	"sigil/internal/http"
	"sigil/internal/jobs"
	"sigil/internal/tracing"
)

// Application wraps cartridge.Application with the avatar service and its
// background jobs.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Avatars   *avatars.Service
	Jobs      *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	if cfg.TraceFile != "" {
		if err := tracing.Init(cfg.AppName, http.Version, cfg.TraceFile); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		logger.Info("Tracing enabled", slog.String("file", cfg.TraceFile))
	}

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svc, err := avatars.NewService(cfg, dbManager.GetConnection(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize avatar service: %w", err)
	}

	scheduler := jobs.NewScheduler(dbManager, svc, logger, cfg)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    NewRouteMounter(cfg, svc),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Avatars:     svc,
		Jobs:        scheduler,
	}, nil
}

// Shutdown stops the server and background jobs, then flushes traces.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Application.Shutdown(ctx)
	if terr := tracing.Shutdown(ctx); terr != nil && err == nil {
		err = terr
	}
	return err
}
