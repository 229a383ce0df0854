package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BalanceModel is the single-row cash balance table.
type BalanceModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	Cash          decimal.Decimal `gorm:"column:cash;type:TEXT"`
	UpdatedAtUnix int64           `gorm:"column:updated_at"`
}

func (BalanceModel) TableName() string { return "cash_balance" }

type PositionModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	Ticker        string          `gorm:"column:ticker;uniqueIndex"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	CostBasis     decimal.Decimal `gorm:"column:cost_basis;type:TEXT"`
	UpdatedAtUnix int64           `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// TransactionModel maps to the append-only ledger. Rows are never updated or
// deleted once written.
type TransactionModel struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	CycleID       string          `gorm:"column:cycle_id;index"`
	Ticker        string          `gorm:"column:ticker;index"`
	Action        string          `gorm:"column:action"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:TEXT"`
	Price         decimal.Decimal `gorm:"column:price;type:TEXT"`
	CashDelta     decimal.Decimal `gorm:"column:cash_delta;type:TEXT"`
	Details       datatypes.JSON  `gorm:"column:details;type:TEXT"`
	CreatedAtUnix int64           `gorm:"column:created_at"`
}

func (TransactionModel) TableName() string { return "transactions" }

// SeedModel records the initial state the ledger folds from.
type SeedModel struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	Cash      decimal.Decimal `gorm:"column:cash;type:TEXT"`
	Positions datatypes.JSON  `gorm:"column:positions;type:TEXT"`
	SeededAt  int64           `gorm:"column:seeded_at"`
}

func (SeedModel) TableName() string { return "seed_state" }
