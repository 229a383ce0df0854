package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one held instrument inside a snapshot.
type Position struct {
	Ticker    string          `json:"ticker"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// Snapshot is the immutable portfolio view taken at cycle start. Mutations
// never touch it; the live store is the feasibility authority.
type Snapshot struct {
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
	TakenAt   time.Time           `json:"taken_at"`
}

// Quantity returns the held quantity for ticker, zero when absent.
func (s Snapshot) Quantity(ticker string) decimal.Decimal {
	if p, ok := s.Positions[ticker]; ok {
		return p.Quantity
	}
	return decimal.Zero
}

// Quote is an oracle-verified price. The reasoning loop never fabricates one.
type Quote struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
	At     time.Time       `json:"at"`
}

// Provenance tags an EvidenceClaim.
type Provenance string

const (
	ProvenanceVerified   Provenance = "verified"
	ProvenanceUnverified Provenance = "unverified"
)

// EvidenceClaim is a price fact asserted by the reasoning process.
type EvidenceClaim struct {
	Ticker     string          `json:"ticker"`
	Price      decimal.Decimal `json:"price"`
	Provenance Provenance      `json:"provenance"`
}

// Transaction is one immutable ledger entry. Current balances must always
// equal the seed state plus the fold of all transactions.
type Transaction struct {
	ID        int64           `json:"id"`
	CycleID   string          `json:"cycle_id"`
	Ticker    string          `json:"ticker"`
	Action    Action          `json:"action"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CashDelta decimal.Decimal `json:"cash_delta"`
	Rationale string          `json:"rationale,omitempty"`
	At        time.Time       `json:"at"`
}
