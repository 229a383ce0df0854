package cycle

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"folio/internal/applier"
	"folio/internal/engine"
	"folio/internal/logger"
	"folio/internal/pkg/circuit"
	"folio/internal/portfolio"
	"folio/internal/store"
	"folio/internal/store/cyclelog"

	"github.com/google/uuid"
)

// GuardrailSource supplies the loop limits for the next cycle. The config
// watcher implements it so knobs can change between ticks.
type GuardrailSource interface {
	Guardrails() engine.Guardrails
}

// Orchestrator wires one tick end to end: snapshot, reasoning run, apply,
// report. All in-loop failures degrade; only an unreadable store at load
// time fails the cycle.
type Orchestrator struct {
	Store      store.PortfolioStore
	Controller *engine.Controller
	Applier    *applier.Applier
	Guardrails GuardrailSource
	CycleLog   *cyclelog.Store
	Breaker    *circuit.CircuitBreaker
	Deadline   time.Duration
}

// RunCycle executes one cycle. The returned error is non-nil only for
// portfolio.ErrStoreUnreachable.
func (o *Orchestrator) RunCycle(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{
		CycleID:   uuid.NewString(),
		StartedAt: start.UTC(),
	}

	snap, err := o.Store.ReadSnapshot(ctx)
	if err != nil {
		logger.Errorf("Cycle %s: snapshot load failed: %v", report.CycleID, err)
		return report, err
	}
	report.CashBefore = snap.Cash
	report.CashAfter = snap.Cash

	guard := o.Guardrails.Guardrails()
	logger.Infof("Cycle %s: start cash=$%s positions=%d max_steps=%d",
		report.CycleID, snap.Cash.StringFixed(2), len(snap.Positions), guard.MaxSteps)

	var outcome engine.Outcome
	if o.Breaker != nil && !o.Breaker.Allow() {
		logger.Warnf("Cycle %s: circuit breaker open, skipping reasoning", report.CycleID)
		outcome = engine.Outcome{
			Decisions: []portfolio.Decision{{Action: portfolio.ActionHold, Rationale: string(portfolio.ReasonPlannerUnavailable)}},
			Forced:    true,
			Reason:    portfolio.ReasonPlannerUnavailable,
		}
	} else {
		deadline := o.Deadline
		if deadline <= 0 {
			deadline = 5 * time.Minute
		}
		cctx, cancel := context.WithTimeout(ctx, deadline)
		outcome = o.Controller.Run(cctx, snap, guard)
		cancel()
		if o.Breaker != nil {
			if outcome.Forced && outcome.Reason == portfolio.ReasonPlannerUnavailable {
				o.Breaker.RecordFailure()
			} else {
				o.Breaker.RecordSuccess()
			}
		}
		if outcome.Reason == portfolio.ReasonDeadlineExceeded || cctxExpired(cctx) {
			report.Incomplete = true
		}
	}

	report.Decisions = outcome.Decisions
	report.Forced = outcome.Forced
	report.Reason = outcome.Reason
	report.StepsTaken = len(outcome.Steps)

	// Transactions already applied stay committed even on an incomplete
	// cycle; there is no rollback of the append-only ledger.
	result := o.Applier.Apply(ctx, report.CycleID, outcome.Decisions)
	report.Applied = result.Applied
	report.Rejected = result.Rejected

	if after, err := o.Store.ReadSnapshot(ctx); err == nil {
		report.CashAfter = after.Cash
	}
	report.DurationMS = time.Since(start).Milliseconds()

	o.persist(ctx, report, outcome)
	logger.Infof("Cycle %s: done outcome=%s applied=%d rejected=%d duration=%dms",
		report.CycleID, report.Outcome(), len(report.Applied), len(report.Rejected), report.DurationMS)
	return report, nil
}

func cctxExpired(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func (o *Orchestrator) persist(ctx context.Context, report Report, outcome engine.Outcome) {
	if o.CycleLog == nil {
		return
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		logger.Warnf("Cycle %s: report marshal failed: %v", report.CycleID, err)
		return
	}
	transcriptJSON, _ := json.Marshal(outcome.Steps)
	rec := cyclelog.Record{
		CycleID:    report.CycleID,
		TS:         report.StartedAt.Unix(),
		Outcome:    report.Outcome(),
		Incomplete: report.Incomplete,
		Report:     reportJSON,
		Transcript: transcriptJSON,
	}
	// Persist with a fresh short deadline; an expired cycle context must not
	// lose the report.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.CycleLog.Append(pctx, rec); err != nil {
		logger.Warnf("Cycle %s: cycle log append failed: %v", report.CycleID, err)
	}
}
