package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/portfolio"
	"folio/internal/store"
	"folio/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the sqlite-backed portfolio ledger.
type Store struct {
	db *gorm.DB
}

func NewStore(path string, seed store.Seed) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newStore(db, seed)
}

// NewStoreFromDB wraps an existing gorm handle (used by tests with an
// in-memory database).
func NewStoreFromDB(db *gorm.DB, seed store.Seed) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newStore(db, seed)
}

func newStore(db *gorm.DB, seed store.Seed) (*Store, error) {
	models := []interface{}{
		&model.BalanceModel{},
		&model.PositionModel{},
		&model.TransactionModel{},
		&model.SeedModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	s := &Store{db: db}
	if err := s.ensureSeeded(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureSeeded writes the seed state on first open. An already-seeded
// database ignores the argument so restarts keep the original anchor.
func (s *Store) ensureSeeded(seed store.Seed) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.SeedModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		posJSON, err := json.Marshal(seed.Positions)
		if err != nil {
			return err
		}
		now := time.Now().Unix()
		if err := tx.Create(&model.SeedModel{Cash: seed.Cash, Positions: posJSON, SeededAt: now}).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.BalanceModel{ID: 1, Cash: seed.Cash, UpdatedAtUnix: now}).Error; err != nil {
			return err
		}
		for _, p := range seed.Positions {
			row := model.PositionModel{
				Ticker:        strings.ToUpper(p.Ticker),
				Quantity:      p.Quantity,
				CostBasis:     p.CostBasis,
				UpdatedAtUnix: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ReadSnapshot(ctx context.Context) (portfolio.Snapshot, error) {
	var snap portfolio.Snapshot
	var bal model.BalanceModel
	if err := s.db.WithContext(ctx).First(&bal, 1).Error; err != nil {
		return snap, fmt.Errorf("%w: %v", portfolio.ErrStoreUnreachable, err)
	}
	var rows []model.PositionModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return snap, fmt.Errorf("%w: %v", portfolio.ErrStoreUnreachable, err)
	}
	snap.Cash = bal.Cash
	snap.TakenAt = time.Now().UTC()
	snap.Positions = make(map[string]portfolio.Position, len(rows))
	for _, r := range rows {
		if r.Quantity.IsZero() {
			continue
		}
		snap.Positions[r.Ticker] = portfolio.Position{
			Ticker:    r.Ticker,
			Quantity:  r.Quantity,
			CostBasis: r.CostBasis,
		}
	}
	return snap, nil
}

type txDetails struct {
	Rationale      string `json:"rationale,omitempty"`
	DowngradedFrom string `json:"downgraded_from,omitempty"`
}

func (s *Store) TryApply(ctx context.Context, cycleID string, d portfolio.Decision) (portfolio.Transaction, error) {
	var out portfolio.Transaction
	if !d.IsTrade() {
		return out, &store.Rejection{Ticker: d.Ticker, Reason: portfolio.ReasonApplyInfeasible, Detail: "not a trade"}
	}
	ticker := strings.ToUpper(strings.TrimSpace(d.Ticker))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bal model.BalanceModel
		if err := tx.First(&bal, 1).Error; err != nil {
			return fmt.Errorf("%w: %v", portfolio.ErrStoreUnreachable, err)
		}
		var pos model.PositionModel
		havePos := true
		if err := tx.Where("ticker = ?", ticker).First(&pos).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", portfolio.ErrStoreUnreachable, err)
			}
			havePos = false
		}

		cost := d.Quantity.Mul(d.LimitPrice)
		now := time.Now()
		var delta decimal.Decimal

		switch d.Action {
		case portfolio.ActionBuy:
			if bal.Cash.LessThan(cost) {
				return &store.Rejection{
					Ticker: ticker,
					Reason: portfolio.ReasonApplyInfeasible,
					Detail: fmt.Sprintf("insufficient funds: need %s, have %s", cost, bal.Cash),
				}
			}
			delta = cost.Neg()
			if havePos {
				oldValue := pos.Quantity.Mul(pos.CostBasis)
				newQty := pos.Quantity.Add(d.Quantity)
				pos.CostBasis = oldValue.Add(cost).Div(newQty).Round(6)
				pos.Quantity = newQty
			} else {
				pos = model.PositionModel{Ticker: ticker, Quantity: d.Quantity, CostBasis: d.LimitPrice}
			}
			pos.UpdatedAtUnix = now.Unix()
			if err := tx.Save(&pos).Error; err != nil {
				return err
			}
		case portfolio.ActionSell:
			held := decimal.Zero
			if havePos {
				held = pos.Quantity
			}
			if held.LessThan(d.Quantity) {
				return &store.Rejection{
					Ticker: ticker,
					Reason: portfolio.ReasonApplyInfeasible,
					Detail: fmt.Sprintf("insufficient shares: need %s, have %s", d.Quantity, held),
				}
			}
			delta = cost
			pos.Quantity = held.Sub(d.Quantity)
			pos.UpdatedAtUnix = now.Unix()
			if err := tx.Save(&pos).Error; err != nil {
				return err
			}
		}

		bal.Cash = bal.Cash.Add(delta)
		bal.UpdatedAtUnix = now.Unix()
		if err := tx.Save(&bal).Error; err != nil {
			return err
		}

		details, _ := json.Marshal(txDetails{Rationale: d.Rationale, DowngradedFrom: string(d.DowngradedFrom)})
		row := model.TransactionModel{
			CycleID:       cycleID,
			Ticker:        ticker,
			Action:        string(d.Action),
			Quantity:      d.Quantity,
			Price:         d.LimitPrice,
			CashDelta:     delta,
			Details:       details,
			CreatedAtUnix: now.Unix(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = portfolio.Transaction{
			ID:        row.ID,
			CycleID:   cycleID,
			Ticker:    ticker,
			Action:    d.Action,
			Quantity:  d.Quantity,
			Price:     d.LimitPrice,
			CashDelta: delta,
			Rationale: d.Rationale,
			At:        now.UTC(),
		}
		return nil
	})
	if err != nil {
		return portfolio.Transaction{}, err
	}
	return out, nil
}

func (s *Store) Transactions(ctx context.Context, limit int) ([]portfolio.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.TransactionModel
	if err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]portfolio.Transaction, 0, len(rows))
	for _, r := range rows {
		var det txDetails
		_ = json.Unmarshal(r.Details, &det)
		out = append(out, portfolio.Transaction{
			ID:        r.ID,
			CycleID:   r.CycleID,
			Ticker:    r.Ticker,
			Action:    portfolio.Action(r.Action),
			Quantity:  r.Quantity,
			Price:     r.Price,
			CashDelta: r.CashDelta,
			Rationale: det.Rationale,
			At:        time.Unix(r.CreatedAtUnix, 0).UTC(),
		})
	}
	return out, nil
}

// VerifyFold re-derives cash and per-ticker quantities from the seed plus
// the full ledger and compares them to the live rows.
func (s *Store) VerifyFold(ctx context.Context) error {
	var seedRow model.SeedModel
	if err := s.db.WithContext(ctx).First(&seedRow).Error; err != nil {
		return fmt.Errorf("%w: %v", portfolio.ErrStoreUnreachable, err)
	}
	var seedPositions []store.SeedPosition
	if len(seedRow.Positions) > 0 {
		if err := json.Unmarshal(seedRow.Positions, &seedPositions); err != nil {
			return err
		}
	}
	cash := seedRow.Cash
	qty := make(map[string]decimal.Decimal, len(seedPositions))
	for _, p := range seedPositions {
		qty[strings.ToUpper(p.Ticker)] = p.Quantity
	}

	var txs []model.TransactionModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&txs).Error; err != nil {
		return err
	}
	for _, t := range txs {
		cash = cash.Add(t.CashDelta)
		signed := t.Quantity
		if portfolio.Action(t.Action) == portfolio.ActionSell {
			signed = signed.Neg()
		}
		qty[t.Ticker] = qty[t.Ticker].Add(signed)
	}
	if cash.IsNegative() {
		return fmt.Errorf("fold produced negative cash: %s", cash)
	}

	var bal model.BalanceModel
	if err := s.db.WithContext(ctx).First(&bal, 1).Error; err != nil {
		return err
	}
	if !bal.Cash.Equal(cash) {
		return fmt.Errorf("cash fold mismatch: live=%s fold=%s", bal.Cash, cash)
	}
	var rows []model.PositionModel
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		want := qty[r.Ticker]
		if !r.Quantity.Equal(want) {
			return fmt.Errorf("position fold mismatch for %s: live=%s fold=%s", r.Ticker, r.Quantity, want)
		}
		if r.Quantity.IsNegative() {
			return fmt.Errorf("negative position for %s: %s", r.Ticker, r.Quantity)
		}
		delete(qty, r.Ticker)
	}
	for ticker, q := range qty {
		if !q.IsZero() {
			return fmt.Errorf("fold has %s=%s but store has no row", ticker, q)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
