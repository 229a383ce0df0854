package app

import (
	"context"
	"fmt"
	"time"

	"folio/internal/applier"
	"folio/internal/config"
	"folio/internal/cycle"
	"folio/internal/engine"
	"folio/internal/intel"
	"folio/internal/oracle"
	"folio/internal/pkg/circuit"
	"folio/internal/planner"
	"folio/internal/scheduler"
	"folio/internal/store"
	"folio/internal/store/cyclelog"
	"folio/internal/store/sqlite"
	httpapi "folio/internal/transport/http"
)

// guardrailAdapter feeds the orchestrator the watcher's current loop knobs
// so config edits take effect on the next cycle.
type guardrailAdapter struct {
	watcher *config.Watcher
}

func (g guardrailAdapter) Guardrails() engine.Guardrails {
	loop := g.watcher.Loop()
	return engine.Guardrails{
		MaxSteps:        loop.MaxSteps,
		EscalateAfter:   loop.EscalateAfter,
		RepeatThreshold: loop.RepeatThreshold,
		TolerancePct:    g.watcher.TolerancePct(),
	}
}

func buildApp(cfg *config.Config, watcher *config.Watcher) (*App, error) {
	seed, err := store.LoadSeed(cfg.Seed.Path)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	portfolioStore, err := sqlite.NewStore(cfg.Store.Path, seed)
	if err != nil {
		return nil, fmt.Errorf("open portfolio store: %w", err)
	}
	cycleLog, err := cyclelog.NewStore(cfg.CycleLog.Path)
	if err != nil {
		portfolioStore.Close()
		return nil, fmt.Errorf("open cycle log: %w", err)
	}

	plannerEngine := planner.NewOpenAIChatEngine(
		cfg.Planner.BaseURL,
		cfg.Planner.APIKey,
		cfg.Planner.Model,
		cfg.Planner.Timeout(),
		cfg.Planner.MaxRetries,
		cfg.Planner.MaxHistory,
	)
	priceOracle := oracle.NewYahooOracle(cfg.Oracle.RatePerSecond, oracleTimeout(cfg))
	var intelSource intel.Source
	if cfg.Intel.APIKey != "" {
		intelSource = intel.NewTavilyClient(cfg.Intel.BaseURL, cfg.Intel.APIKey,
			cfg.Intel.MaxResults, intelTimeout(cfg))
	}

	controller := engine.NewController(
		plannerEngine,
		priceOracle,
		intelSource,
		cfg.Trading.Candidates,
		toolTimeout(cfg),
	)
	orchestrator := &cycle.Orchestrator{
		Store:      portfolioStore,
		Controller: controller,
		Applier:    applier.New(portfolioStore, cfg.Trading.MaxBuysPerCycle),
		Guardrails: guardrailAdapter{watcher: watcher},
		CycleLog:   cycleLog,
		Breaker:    circuit.NewCircuitBreaker("planner", 3, 2*time.Minute),
		Deadline:   time.Duration(cfg.Cycle.DeadlineSeconds) * time.Second,
	}

	router := httpapi.NewRouter(orchestrator, portfolioStore, cycleLog)
	server, err := httpapi.NewServer(httpapi.ServerConfig{Addr: cfg.App.HTTPAddr, Router: router})
	if err != nil {
		cycleLog.Close()
		portfolioStore.Close()
		return nil, fmt.Errorf("build http server: %w", err)
	}

	a := &App{
		cfg:          cfg,
		store:        portfolioStore,
		cycleLog:     cycleLog,
		orchestrator: orchestrator,
		server:       server,
	}
	if cfg.Scheduler.Enabled {
		a.schedulerFactory = func(ctx context.Context) *scheduler.AlignedScheduler {
			s := scheduler.NewAlignedScheduler(ctx, cfg.Scheduler.Interval(), cfg.Scheduler.Offset())
			s.RunImmediately = cfg.Scheduler.RunImmediately
			return s
		}
	}
	return a, nil
}

func oracleTimeout(cfg *config.Config) time.Duration {
	if cfg.Oracle.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second
}

func intelTimeout(cfg *config.Config) time.Duration {
	if cfg.Intel.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(cfg.Intel.TimeoutSeconds) * time.Second
}

// toolTimeout bounds any single tool call inside the reasoning loop. It uses
// the slower of the two tool backends so neither gets cut off early.
func toolTimeout(cfg *config.Config) time.Duration {
	t := oracleTimeout(cfg)
	if it := intelTimeout(cfg); it > t {
		t = it
	}
	return t
}
