package app

import (
	"context"
	"fmt"

	"folio/internal/config"
	"folio/internal/cycle"
	"folio/internal/logger"
	"folio/internal/scheduler"
	"folio/internal/store"
	"folio/internal/store/cyclelog"
	httpapi "folio/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: config in, dependencies built,
// HTTP API and scheduler running until cancelled.
type App struct {
	cfg          *config.Config
	store        store.PortfolioStore
	cycleLog     *cyclelog.Store
	orchestrator *cycle.Orchestrator
	server       *httpapi.Server

	schedulerFactory func(ctx context.Context) *scheduler.AlignedScheduler
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config, watcher *config.Watcher) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildApp(cfg, watcher)
}

// Run serves the HTTP API and, when enabled, the aligned cycle scheduler.
// It blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if err := a.verifyLedger(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Infof("HTTP API listening on %s", a.server.Addr())
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.schedulerFactory != nil {
		group.Go(func() error {
			sched := a.schedulerFactory(ctx)
			sched.Start(func() {
				if _, err := a.orchestrator.RunCycle(ctx); err != nil {
					logger.Errorf("Scheduled cycle failed: %v", err)
				}
			})
			return nil
		})
	} else {
		logger.Infof("Scheduler disabled, cycles run on demand via POST /api/cycle/run")
	}

	return group.Wait()
}

// verifyLedger re-folds the transaction ledger against live state on boot so
// a corrupted store is caught before the first cycle.
func (a *App) verifyLedger(ctx context.Context) error {
	if err := a.store.VerifyFold(ctx); err != nil {
		return fmt.Errorf("ledger fold check failed: %w", err)
	}
	logger.Infof("Ledger fold verified against live portfolio state")
	return nil
}

// Orchestrator exposes the cycle orchestrator for test harnesses.
func (a *App) Orchestrator() *cycle.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orchestrator
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cycleLog != nil {
		if err := a.cycleLog.Close(); err != nil {
			logger.Warnf("Close cycle log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("Close portfolio store: %v", err)
		}
	}
}
