package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is a terminal decision kind.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is one instrument's terminal decision for a cycle.
type Decision struct {
	Ticker     string          `json:"ticker"`
	Action     Action          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Rationale  string          `json:"rationale,omitempty"`
	// DowngradedFrom is set when a guardrail turned a trade into a HOLD.
	DowngradedFrom Action `json:"downgraded_from,omitempty"`
	DowngradeNote  string `json:"downgrade_note,omitempty"`
}

// IsTrade reports whether the decision moves money.
func (d Decision) IsTrade() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}

// Hold returns d downgraded to HOLD, remembering what it was.
func (d Decision) Hold(note string) Decision {
	if d.Action == ActionHold {
		return d
	}
	out := d
	out.DowngradedFrom = d.Action
	out.DowngradeNote = note
	out.Action = ActionHold
	out.Quantity = decimal.Zero
	out.LimitPrice = decimal.Zero
	return out
}

// NormalizeAction maps loose model spellings onto the canonical actions.
func NormalizeAction(raw string) Action {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "OPEN", "LONG":
		return ActionBuy
	case "SELL", "CLOSE", "EXIT":
		return ActionSell
	case "HOLD", "WAIT", "NONE", "":
		return ActionHold
	default:
		return Action(strings.ToUpper(strings.TrimSpace(raw)))
	}
}

// Validate checks a single decision's shape. BUY/SELL require a positive
// quantity and limit price; HOLD carries neither.
func Validate(d Decision) error {
	switch d.Action {
	case ActionBuy, ActionSell:
		if strings.TrimSpace(d.Ticker) == "" {
			return fmt.Errorf("%s requires a ticker", d.Action)
		}
		if !d.Quantity.IsPositive() {
			return fmt.Errorf("%s %s requires quantity > 0", d.Action, d.Ticker)
		}
		if !d.LimitPrice.IsPositive() {
			return fmt.Errorf("%s %s requires limit price > 0", d.Action, d.Ticker)
		}
	case ActionHold:
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return nil
}

// OrderForApply sorts SELLs ahead of BUYs (proceeds can fund buys in the
// same cycle), then keeps declared order, and drops duplicate tickers after
// the first occurrence.
func OrderForApply(ds []Decision) []Decision {
	if len(ds) <= 1 {
		return ds
	}
	pri := func(a Action) int {
		switch a {
		case ActionSell:
			return 1
		case ActionBuy:
			return 2
		default:
			return 3
		}
	}
	out := make([]Decision, len(ds))
	copy(out, ds)
	for i := 0; i < len(out)-1; i++ {
		min := i
		for j := i + 1; j < len(out); j++ {
			if pri(out[j].Action) < pri(out[min].Action) {
				min = j
			}
		}
		if min != i {
			d := out[min]
			copy(out[i+1:min+1], out[i:min])
			out[i] = d
		}
	}
	seen := make(map[string]bool, len(out))
	dedup := out[:0]
	for _, d := range out {
		key := strings.ToUpper(d.Ticker)
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		dedup = append(dedup, d)
	}
	return dedup
}
