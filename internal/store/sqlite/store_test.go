package sqlite

import (
	"context"
	"testing"

	"folio/internal/portfolio"
	"folio/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, seed store.Seed) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	s, err := NewStoreFromDB(db, seed)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func buy(ticker, qty, price string) portfolio.Decision {
	return portfolio.Decision{Ticker: ticker, Action: portfolio.ActionBuy, Quantity: dec(qty), LimitPrice: dec(price)}
}

func sell(ticker, qty, price string) portfolio.Decision {
	return portfolio.Decision{Ticker: ticker, Action: portfolio.ActionSell, Quantity: dec(qty), LimitPrice: dec(price)}
}

func TestStore_SeededSnapshot(t *testing.T) {
	s := newTestStore(t, store.Seed{
		Cash: dec("10000"),
		Positions: []store.SeedPosition{
			{Ticker: "aapl", Quantity: dec("10"), CostBasis: dec("180")},
		},
	})

	snap, err := s.ReadSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(dec("10000")))
	require.Contains(t, snap.Positions, "AAPL")
	assert.True(t, snap.Positions["AAPL"].Quantity.Equal(dec("10")))
}

func TestStore_BuyDebitsCashAndCreatesPosition(t *testing.T) {
	s := newTestStore(t, store.Seed{Cash: dec("10000")})
	ctx := context.Background()

	tx, err := s.TryApply(ctx, "cycle-1", buy("TICK", "100", "50"))
	require.NoError(t, err)
	assert.Equal(t, portfolio.ActionBuy, tx.Action)
	assert.True(t, tx.CashDelta.Equal(dec("-5000")))

	snap, err := s.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(dec("5000")), "cash should be 5000, got %s", snap.Cash)
	require.Contains(t, snap.Positions, "TICK")
	assert.True(t, snap.Positions["TICK"].Quantity.Equal(dec("100")))
	assert.True(t, snap.Positions["TICK"].CostBasis.Equal(dec("50")))

	require.NoError(t, s.VerifyFold(ctx))
}

func TestStore_BuyInsufficientFundsRejected(t *testing.T) {
	s := newTestStore(t, store.Seed{Cash: dec("100")})
	ctx := context.Background()

	_, err := s.TryApply(ctx, "cycle-1", buy("TICK", "10", "50"))
	var rej *store.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, portfolio.ReasonApplyInfeasible, rej.Reason)
	assert.Contains(t, rej.Detail, "insufficient funds")

	// Nothing committed.
	snap, err := s.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(dec("100")))
	assert.Empty(t, snap.Positions)
	txs, err := s.Transactions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_SellInsufficientSharesRejected(t *testing.T) {
	s := newTestStore(t, store.Seed{
		Cash:      dec("1000"),
		Positions: []store.SeedPosition{{Ticker: "TICK", Quantity: dec("5"), CostBasis: dec("40")}},
	})

	_, err := s.TryApply(context.Background(), "cycle-1", sell("TICK", "10", "50"))
	var rej *store.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, portfolio.ReasonApplyInfeasible, rej.Reason)
	assert.Contains(t, rej.Detail, "insufficient shares")
}

func TestStore_SellCreditsCash(t *testing.T) {
	s := newTestStore(t, store.Seed{
		Cash:      dec("1000"),
		Positions: []store.SeedPosition{{Ticker: "TICK", Quantity: dec("10"), CostBasis: dec("40")}},
	})
	ctx := context.Background()

	tx, err := s.TryApply(ctx, "cycle-1", sell("TICK", "4", "50"))
	require.NoError(t, err)
	assert.True(t, tx.CashDelta.Equal(dec("200")))

	snap, err := s.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(dec("1200")))
	assert.True(t, snap.Positions["TICK"].Quantity.Equal(dec("6")))

	require.NoError(t, s.VerifyFold(ctx))
}

func TestStore_BuyAveragesCostBasis(t *testing.T) {
	s := newTestStore(t, store.Seed{Cash: dec("10000")})
	ctx := context.Background()

	_, err := s.TryApply(ctx, "c1", buy("TICK", "10", "100"))
	require.NoError(t, err)
	_, err = s.TryApply(ctx, "c2", buy("TICK", "10", "200"))
	require.NoError(t, err)

	snap, err := s.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Positions["TICK"].Quantity.Equal(dec("20")))
	assert.True(t, snap.Positions["TICK"].CostBasis.Equal(dec("150")))
}

func TestStore_SellToZeroDropsFromSnapshot(t *testing.T) {
	s := newTestStore(t, store.Seed{
		Cash:      dec("0"),
		Positions: []store.SeedPosition{{Ticker: "TICK", Quantity: dec("10"), CostBasis: dec("40")}},
	})
	ctx := context.Background()

	_, err := s.TryApply(ctx, "c1", sell("TICK", "10", "50"))
	require.NoError(t, err)

	snap, err := s.ReadSnapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap.Positions, "TICK")
	require.NoError(t, s.VerifyFold(ctx))
}

func TestStore_TransactionsNewestFirst(t *testing.T) {
	s := newTestStore(t, store.Seed{Cash: dec("10000")})
	ctx := context.Background()

	_, err := s.TryApply(ctx, "c1", buy("AAA", "1", "10"))
	require.NoError(t, err)
	_, err = s.TryApply(ctx, "c1", buy("BBB", "2", "20"))
	require.NoError(t, err)

	txs, err := s.Transactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "BBB", txs[0].Ticker)
	assert.Equal(t, "AAA", txs[1].Ticker)
	assert.Equal(t, "c1", txs[0].CycleID)
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s1, err := NewStoreFromDB(db, store.Seed{Cash: dec("10000")})
	require.NoError(t, err)
	_, err = s1.TryApply(context.Background(), "c1", buy("TICK", "1", "100"))
	require.NoError(t, err)

	// Reopening with a different seed must not reset state.
	s2, err := NewStoreFromDB(db, store.Seed{Cash: dec("999999")})
	require.NoError(t, err)
	snap, err := s2.ReadSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Cash.Equal(dec("9900")))
	require.NoError(t, s2.VerifyFold(context.Background()))
	s2.Close()
}
