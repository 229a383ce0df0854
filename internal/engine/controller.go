package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"folio/internal/evidence"
	"folio/internal/intel"
	"folio/internal/logger"
	"folio/internal/oracle"
	"folio/internal/planner"
	"folio/internal/portfolio"
)

// Guardrails are the per-run loop limits. They come from config and may be
// hot-reloaded between cycles, never within one.
type Guardrails struct {
	MaxSteps        int
	EscalateAfter   int
	RepeatThreshold int
	TolerancePct    float64
}

// Outcome is a run's terminal result: either the planner's reconciled
// decision set, or a forced HOLD with the guardrail reason.
type Outcome struct {
	Decisions []portfolio.Decision       `json:"decisions"`
	Forced    bool                       `json:"forced"`
	Reason    portfolio.Reason           `json:"reason,omitempty"`
	Steps     []StepRecord               `json:"steps"`
	Quotes    map[string]portfolio.Quote `json:"quotes,omitempty"`
}

// Controller drives the step-bounded ReAct loop. It is read-only with
// respect to the portfolio store; every mutation happens in the applier.
type Controller struct {
	Planner     planner.Engine
	Oracle      oracle.PriceOracle
	Intel       intel.Source
	Candidates  []string
	ToolTimeout time.Duration
}

func NewController(p planner.Engine, o oracle.PriceOracle, i intel.Source, candidates []string, toolTimeout time.Duration) *Controller {
	if toolTimeout <= 0 {
		toolTimeout = 15 * time.Second
	}
	return &Controller{
		Planner:     p,
		Oracle:      o,
		Intel:       i,
		Candidates:  candidates,
		ToolTimeout: toolTimeout,
	}
}

// Run executes one reasoning loop over the snapshot. It always returns an
// Outcome; reasoning failures degrade to forced HOLD, never to an error.
func (c *Controller) Run(ctx context.Context, snap portfolio.Snapshot, guard Guardrails) Outcome {
	if guard.MaxSteps <= 0 {
		guard.MaxSteps = 7
	}
	if guard.RepeatThreshold <= 0 {
		guard.RepeatThreshold = 2
	}

	trans := &transcript{}
	var directives []string
	lastFP := ""
	repeats := 0
	plannerFailures := 0

	for step := 0; step < guard.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return c.forced(trans, portfolio.ReasonDeadlineExceeded)
		}
		c.logState(StateAwaitingAction, step)

		stepDirectives := directives
		directives = nil
		if guard.EscalateAfter > 0 && step >= guard.EscalateAfter {
			stepDirectives = append(stepDirectives, urgencyDirective(step, guard.MaxSteps))
		}

		action, err := c.Planner.NextAction(ctx, planner.Request{
			Snapshot:   snap,
			Candidates: c.Candidates,
			History:    trans.render(),
			Directives: stepDirectives,
			Step:       step,
			MaxSteps:   guard.MaxSteps,
		})
		if err != nil {
			reason := portfolio.ReasonPlannerUnavailable
			if errors.Is(err, planner.ErrBadResponse) {
				reason = portfolio.ReasonToolUnavailable
			}
			logger.Warnf("Controller: planner step failed step=%d err=%v", step, err)
			plannerFailures++
			trans.append(StepRecord{
				Action:      "planner_error",
				Observation: fmt.Sprintf("%s: %v. Return valid JSON in the required format.", reason, err),
			})
			continue
		}

		if action.Kind == planner.KindDecisionSet {
			c.logState(StateValidating, step)
			decisions, quotes := c.validateDecisions(ctx, action, guard.TolerancePct, trans)
			c.logState(StateTerminated, step)
			return Outcome{Decisions: decisions, Steps: trans.steps, Quotes: quotes}
		}

		call := action.ToolCall
		fp := fingerprint(call)
		if fp == lastFP {
			repeats++
		} else {
			lastFP = fp
			repeats = 1
		}
		if repeats > guard.RepeatThreshold {
			logger.Warnf("Controller: loop detected tool=%s args=%v repeats=%d", call.Name, call.Args, repeats)
			trans.append(StepRecord{
				Thought:     action.Thought,
				Action:      call.Name,
				Args:        renderArgs(call.Args),
				Observation: "Loop detected: identical call repeated beyond threshold. Terminating.",
			})
			return c.forced(trans, portfolio.ReasonLoopDetected)
		}
		if repeats == guard.RepeatThreshold {
			directives = append(directives, forbidDirective(call.Name, renderArgs(call.Args)))
		}

		c.logState(StateToolCallPending, step)
		observation := c.invokeTool(ctx, call)
		trans.append(StepRecord{
			Thought:     action.Thought,
			Action:      call.Name,
			Args:        renderArgs(call.Args),
			Observation: observation,
		})
	}

	// A run where the planner never produced a single action is a backend
	// outage, not an exhausted reasoning budget.
	if plannerFailures == guard.MaxSteps {
		return c.forced(trans, portfolio.ReasonPlannerUnavailable)
	}
	return c.forced(trans, portfolio.ReasonBudgetExhausted)
}

func (c *Controller) logState(s State, step int) {
	logger.Debugf("Controller: state=%s step=%d", s, step)
}

func (c *Controller) forced(trans *transcript, reason portfolio.Reason) Outcome {
	logger.Infof("Controller: forced HOLD reason=%q steps=%d", reason, len(trans.steps))
	return Outcome{
		Decisions: []portfolio.Decision{{Action: portfolio.ActionHold, Rationale: string(reason)}},
		Forced:    true,
		Reason:    reason,
		Steps:     trans.steps,
	}
}

// invokeTool dispatches one tool call with a bounded timeout. Failures come
// back as observations; the loop never crashes on a tool.
func (c *Controller) invokeTool(ctx context.Context, call *planner.ToolCall) string {
	tctx, cancel := context.WithTimeout(ctx, c.ToolTimeout)
	defer cancel()

	switch call.Name {
	case planner.ToolPriceLookup:
		if c.Oracle == nil {
			return fmt.Sprintf("%s: price oracle not configured", portfolio.ReasonToolUnavailable)
		}
		ticker := call.Args["ticker"]
		quote, err := c.Oracle.GetQuote(tctx, ticker)
		if err != nil {
			return toolFailure(tctx, err)
		}
		return fmt.Sprintf("Verified quote: %s trades at $%s (source=%s, %s)",
			quote.Ticker, quote.Price.StringFixed(2), quote.Source, quote.At.Format(time.RFC3339))
	case planner.ToolMarketSearch:
		if c.Intel == nil {
			return fmt.Sprintf("%s: market search not configured", portfolio.ReasonToolUnavailable)
		}
		result, err := c.Intel.Search(tctx, call.Args["query"])
		if err != nil {
			return toolFailure(tctx, err)
		}
		return result
	default:
		return fmt.Sprintf("Unknown tool %q. Available tools: %s, %s, %s",
			call.Name, planner.ToolPriceLookup, planner.ToolMarketSearch, planner.ToolFinalDecide)
	}
}

func toolFailure(ctx context.Context, err error) string {
	reason := portfolio.ReasonToolUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = portfolio.ReasonToolTimeout
	}
	return fmt.Sprintf("%s: %v", reason, err)
}

// validateDecisions is the VALIDATING stage: every trade ticker's claimed
// price is checked against a fresh oracle quote; out-of-tolerance claims
// downgrade that single instrument to HOLD, the rest proceed.
func (c *Controller) validateDecisions(ctx context.Context, action planner.NextAction, tolerancePct float64, trans *transcript) ([]portfolio.Decision, map[string]portfolio.Quote) {
	decisions := action.Decisions
	quotes := make(map[string]portfolio.Quote)
	for _, d := range decisions {
		if !d.IsTrade() {
			continue
		}
		ticker := strings.ToUpper(d.Ticker)
		if _, ok := quotes[ticker]; ok {
			continue
		}
		if c.Oracle == nil {
			continue
		}
		tctx, cancel := context.WithTimeout(ctx, c.ToolTimeout)
		quote, err := c.Oracle.GetQuote(tctx, ticker)
		cancel()
		if err != nil {
			logger.Warnf("Controller: validation quote unavailable ticker=%s err=%v", ticker, err)
			continue
		}
		quotes[ticker] = quote
	}

	reconciled := evidence.Reconcile(decisions, quotes, tolerancePct)
	downgrades := 0
	for _, d := range reconciled {
		if d.DowngradedFrom != "" {
			downgrades++
		}
	}
	trans.append(StepRecord{
		Thought:     action.Thought,
		Action:      planner.ToolFinalDecide,
		Args:        fmt.Sprintf("decisions=%d", len(decisions)),
		Observation: fmt.Sprintf("Validated against %d oracle quotes; %d decision(s) downgraded to HOLD.", len(quotes), downgrades),
	})
	return reconciled, quotes
}
