package store

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedPosition is one initial holding in the seed file.
type SeedPosition struct {
	Ticker    string          `yaml:"ticker"`
	Quantity  decimal.Decimal `yaml:"quantity"`
	CostBasis decimal.Decimal `yaml:"cost_basis"`
}

// Seed is the initial portfolio state. It is written once into the store and
// anchors the fold invariant thereafter.
type Seed struct {
	Cash      decimal.Decimal `yaml:"cash"`
	Positions []SeedPosition  `yaml:"positions"`
}

// LoadSeed reads the seed portfolio from a YAML file.
func LoadSeed(path string) (Seed, error) {
	var s Seed
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading seed file failed (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parsing seed file failed (%s): %w", path, err)
	}
	if s.Cash.IsNegative() {
		return s, fmt.Errorf("seed cash must not be negative: %s", s.Cash)
	}
	for _, p := range s.Positions {
		if p.Ticker == "" {
			return s, fmt.Errorf("seed position missing ticker")
		}
		if p.Quantity.IsNegative() {
			return s, fmt.Errorf("seed position %s has negative quantity", p.Ticker)
		}
	}
	return s, nil
}
