package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"folio/internal/logger"
	"folio/internal/portfolio"

	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const yahooSource = "yahoo"

// YahooOracle fetches real-time quotes from Yahoo Finance. A rate limiter
// keeps a misbehaving reasoning loop from hammering the upstream.
type YahooOracle struct {
	limiter *rate.Limiter
	timeout time.Duration
}

func NewYahooOracle(ratePerSecond float64, timeout time.Duration) *YahooOracle {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooOracle{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		timeout: timeout,
	}
}

func (o *YahooOracle) GetQuote(ctx context.Context, ticker string) (portfolio.Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return portfolio.Quote{}, fmt.Errorf("%w: empty ticker", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if err := o.limiter.Wait(ctx); err != nil {
		return portfolio.Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	type result struct {
		price float64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := quote.Get(ticker)
		if err != nil {
			ch <- result{err: err}
			return
		}
		if q == nil || q.RegularMarketPrice <= 0 {
			ch <- result{err: fmt.Errorf("no market price for %s", ticker)}
			return
		}
		ch <- result{price: q.RegularMarketPrice}
	}()

	select {
	case <-ctx.Done():
		return portfolio.Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			logger.Warnf("Oracle: quote fetch failed ticker=%s err=%v", ticker, res.err)
			return portfolio.Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, res.err)
		}
		return portfolio.Quote{
			Ticker: ticker,
			Price:  decimal.NewFromFloat(res.price),
			Source: yahooSource,
			At:     time.Now().UTC(),
		}, nil
	}
}
