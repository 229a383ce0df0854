package store

import (
	"context"
	"errors"
	"fmt"

	"folio/internal/portfolio"
)

// ErrInfeasible marks a decision the live store could not honor (insufficient
// cash or shares). It rejects one instrument, never the batch.
var ErrInfeasible = errors.New("decision infeasible")

// Rejection carries the per-instrument detail behind an ErrInfeasible.
type Rejection struct {
	Ticker string
	Reason portfolio.Reason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s (%s)", r.Ticker, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return ErrInfeasible }

// PortfolioStore is the sole mutable shared resource. Feasibility is always
// checked against it, never against a stale snapshot.
type PortfolioStore interface {
	// ReadSnapshot returns the current cash and positions as an immutable view.
	ReadSnapshot(ctx context.Context) (portfolio.Snapshot, error)
	// TryApply atomically checks feasibility against live state and, if
	// feasible, updates cash + position and appends the transaction record
	// as one unit. Returns *Rejection (wrapping ErrInfeasible) otherwise.
	TryApply(ctx context.Context, cycleID string, d portfolio.Decision) (portfolio.Transaction, error)
	// Transactions lists the most recent ledger entries, newest first.
	Transactions(ctx context.Context, limit int) ([]portfolio.Transaction, error)
	// VerifyFold re-derives balances from the seed state plus the full
	// transaction log and errors if the live rows disagree.
	VerifyFold(ctx context.Context) error
	Close() error
}
