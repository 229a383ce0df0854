package applier

import (
	"context"
	"errors"

	"folio/internal/logger"
	"folio/internal/portfolio"
	"folio/internal/store"
)

// RejectedDecision records one instrument the store refused, with the why.
type RejectedDecision struct {
	Decision portfolio.Decision `json:"decision"`
	Reason   portfolio.Reason   `json:"reason"`
	Detail   string             `json:"detail,omitempty"`
}

// Result is the outcome of applying one decision set.
type Result struct {
	Applied  []portfolio.Transaction `json:"applied"`
	Rejected []RejectedDecision      `json:"rejected"`
	Held     []portfolio.Decision    `json:"held"`
}

// Applier commits terminal decisions against the live store. Feasibility is
// re-checked inside the store's per-ticker transaction, not against the
// snapshot, so two overlapping cycles cannot overdraw cash or shares.
type Applier struct {
	store   store.PortfolioStore
	maxBuys int
}

func New(s store.PortfolioStore, maxBuysPerCycle int) *Applier {
	if maxBuysPerCycle <= 0 {
		maxBuysPerCycle = 3
	}
	return &Applier{store: s, maxBuys: maxBuysPerCycle}
}

// Apply executes decisions in deterministic order (SELLs first, so proceeds
// can fund BUYs in the same cycle). Infeasible decisions are rejected
// individually; the batch continues.
func (a *Applier) Apply(ctx context.Context, cycleID string, decisions []portfolio.Decision) Result {
	var res Result
	ordered := portfolio.OrderForApply(decisions)
	buys := 0

	for _, d := range ordered {
		if !d.IsTrade() {
			res.Held = append(res.Held, d)
			continue
		}
		if err := portfolio.Validate(d); err != nil {
			logger.Warnf("Applier: invalid decision dropped: %v", err)
			res.Rejected = append(res.Rejected, RejectedDecision{
				Decision: d,
				Reason:   portfolio.ReasonApplyInfeasible,
				Detail:   err.Error(),
			})
			continue
		}
		if d.Action == portfolio.ActionBuy {
			if buys >= a.maxBuys {
				res.Rejected = append(res.Rejected, RejectedDecision{
					Decision: d,
					Reason:   portfolio.ReasonApplyInfeasible,
					Detail:   "max buys per cycle reached",
				})
				continue
			}
			buys++
		}

		tx, err := a.store.TryApply(ctx, cycleID, d)
		if err != nil {
			var rej *store.Rejection
			if errors.As(err, &rej) {
				logger.Warnf("Applier: decision rejected ticker=%s detail=%s", rej.Ticker, rej.Detail)
				res.Rejected = append(res.Rejected, RejectedDecision{
					Decision: d,
					Reason:   rej.Reason,
					Detail:   rej.Detail,
				})
				continue
			}
			// Store errors mid-batch degrade the remaining instrument, they
			// do not roll back already-applied transactions.
			logger.Errorf("Applier: store error ticker=%s err=%v", d.Ticker, err)
			res.Rejected = append(res.Rejected, RejectedDecision{
				Decision: d,
				Reason:   portfolio.ReasonStoreUnreachable,
				Detail:   err.Error(),
			})
			continue
		}
		logger.Infof("Applier: %s %s qty=%s price=%s cash_delta=%s cycle=%s",
			tx.Action, tx.Ticker, tx.Quantity, tx.Price, tx.CashDelta, cycleID)
		res.Applied = append(res.Applied, tx)
	}
	return res
}
