package cycle

import (
	"time"

	"folio/internal/applier"
	"folio/internal/portfolio"

	"github.com/shopspring/decimal"
)

// Report is the structured result of one cycle. Degraded cycles still
// produce a report; monitoring tells "ran but cautious" apart from "did not
// run" by Forced/Rejected annotations, not by status codes.
type Report struct {
	CycleID    string                     `json:"cycle_id"`
	StartedAt  time.Time                  `json:"started_at"`
	DurationMS int64                      `json:"duration_ms"`
	CashBefore decimal.Decimal            `json:"cash_before"`
	CashAfter  decimal.Decimal            `json:"cash_after"`
	Decisions  []portfolio.Decision       `json:"decisions"`
	Applied    []portfolio.Transaction    `json:"applied"`
	Rejected   []applier.RejectedDecision `json:"rejected,omitempty"`
	Forced     bool                       `json:"forced"`
	Reason     portfolio.Reason           `json:"reason,omitempty"`
	StepsTaken int                        `json:"steps_taken"`
	Incomplete bool                       `json:"incomplete"`
}

// Outcome summarizes the report for logs and the cycle log store.
func (r Report) Outcome() string {
	switch {
	case r.Incomplete:
		return "incomplete"
	case r.Forced:
		return "forced_hold"
	case len(r.Applied) > 0:
		return "traded"
	default:
		return "held"
	}
}
