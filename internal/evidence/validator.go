package evidence

import (
	"fmt"

	"folio/internal/portfolio"

	"github.com/shopspring/decimal"
)

// Verdict is the outcome of validating one claim against one quote.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Validate compares a claimed price against an oracle-verified quote. Pure
// function: same inputs always produce the same verdict. Claims already
// tagged verified pass; unverified claims must sit within tolerancePct of
// the quote.
func Validate(claim portfolio.EvidenceClaim, quote portfolio.Quote, tolerancePct float64) Verdict {
	if claim.Provenance == portfolio.ProvenanceVerified {
		return Verdict{Accepted: true}
	}
	if !quote.Price.IsPositive() {
		return Verdict{Accepted: false, Reason: "no verified quote to compare against"}
	}
	if !claim.Price.IsPositive() {
		return Verdict{Accepted: false, Reason: "claimed price not positive"}
	}
	tolerance := decimal.NewFromFloat(tolerancePct).Div(decimal.NewFromInt(100))
	deviation := claim.Price.Sub(quote.Price).Abs().Div(quote.Price)
	if deviation.GreaterThan(tolerance) {
		return Verdict{
			Accepted: false,
			Reason: fmt.Sprintf("claimed %s deviates %s%% from verified %s (tolerance %.2f%%)",
				claim.Price, deviation.Mul(decimal.NewFromInt(100)).Round(2), quote.Price, tolerancePct),
		}
	}
	return Verdict{Accepted: true}
}

// Reconcile strips or downgrades individual instrument decisions whose price
// claims fail validation, leaving the rest untouched. Partial rejection,
// never all-or-nothing: one hallucinated price must not abort the cycle.
func Reconcile(decisions []portfolio.Decision, quotes map[string]portfolio.Quote, tolerancePct float64) []portfolio.Decision {
	out := make([]portfolio.Decision, 0, len(decisions))
	for _, d := range decisions {
		if !d.IsTrade() {
			out = append(out, d)
			continue
		}
		quote, ok := quotes[d.Ticker]
		if !ok {
			out = append(out, d.Hold(string(portfolio.ReasonValidationRejected)+": no verified quote for "+d.Ticker))
			continue
		}
		claim := portfolio.EvidenceClaim{
			Ticker:     d.Ticker,
			Price:      d.LimitPrice,
			Provenance: portfolio.ProvenanceUnverified,
		}
		verdict := Validate(claim, quote, tolerancePct)
		if !verdict.Accepted {
			out = append(out, d.Hold(string(portfolio.ReasonValidationRejected)+": "+verdict.Reason))
			continue
		}
		out = append(out, d)
	}
	return out
}
