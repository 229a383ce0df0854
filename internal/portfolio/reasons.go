package portfolio

import "errors"

// Reason classifies why a step or an instrument's decision was degraded.
// Every kind except StoreUnreachable is absorbed inside the cycle.
type Reason string

const (
	ReasonToolUnavailable    Reason = "tool unavailable"
	ReasonToolTimeout        Reason = "tool timeout"
	ReasonValidationRejected Reason = "validation rejected"
	ReasonLoopDetected       Reason = "loop detected"
	ReasonBudgetExhausted    Reason = "step budget exhausted"
	ReasonApplyInfeasible    Reason = "apply infeasible"
	ReasonStoreUnreachable   Reason = "store unreachable"
	ReasonPlannerUnavailable Reason = "planner unavailable"
	ReasonDeadlineExceeded   Reason = "cycle deadline exceeded"
)

// ErrStoreUnreachable is the only cycle-fatal error: the portfolio store
// could not be read at snapshot load time.
var ErrStoreUnreachable = errors.New("portfolio store unreachable")
