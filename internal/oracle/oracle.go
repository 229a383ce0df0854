package oracle

import (
	"context"
	"errors"

	"folio/internal/portfolio"
)

// ErrUnavailable means the oracle could not produce a quote right now. The
// caller degrades the step; it never crashes the cycle.
var ErrUnavailable = errors.New("quote unavailable")

// PriceOracle returns a verified quote for a ticker at call time.
type PriceOracle interface {
	GetQuote(ctx context.Context, ticker string) (portfolio.Quote, error)
}
