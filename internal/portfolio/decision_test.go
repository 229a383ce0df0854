package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(ticker string, action Action) Decision {
	return Decision{Ticker: ticker, Action: action, Quantity: decimal.NewFromInt(1), LimitPrice: decimal.NewFromInt(10)}
}

func TestOrderForApply(t *testing.T) {
	t.Run("Sells First Stable", func(t *testing.T) {
		out := OrderForApply([]Decision{
			trade("B1", ActionBuy),
			trade("S1", ActionSell),
			trade("B2", ActionBuy),
			trade("S2", ActionSell),
		})
		require.Len(t, out, 4)
		assert.Equal(t, "S1", out[0].Ticker)
		assert.Equal(t, "S2", out[1].Ticker)
		assert.Equal(t, "B1", out[2].Ticker)
		assert.Equal(t, "B2", out[3].Ticker)
	})

	t.Run("Duplicate Tickers Dropped", func(t *testing.T) {
		out := OrderForApply([]Decision{
			trade("TICK", ActionSell),
			trade("TICK", ActionBuy),
			trade("OTHER", ActionBuy),
		})
		require.Len(t, out, 2)
		assert.Equal(t, "TICK", out[0].Ticker)
		assert.Equal(t, ActionSell, out[0].Action)
		assert.Equal(t, "OTHER", out[1].Ticker)
	})

	t.Run("Holds Last And Kept", func(t *testing.T) {
		out := OrderForApply([]Decision{
			{Action: ActionHold, Rationale: "a"},
			trade("B", ActionBuy),
			{Action: ActionHold, Rationale: "b"},
		})
		require.Len(t, out, 3)
		assert.Equal(t, ActionBuy, out[0].Action)
		assert.Equal(t, "a", out[1].Rationale)
		assert.Equal(t, "b", out[2].Rationale)
	})
}

func TestNormalizeAction(t *testing.T) {
	assert.Equal(t, ActionBuy, NormalizeAction(" long "))
	assert.Equal(t, ActionBuy, NormalizeAction("OPEN"))
	assert.Equal(t, ActionSell, NormalizeAction("close"))
	assert.Equal(t, ActionHold, NormalizeAction("wait"))
	assert.Equal(t, ActionHold, NormalizeAction(""))
	assert.Equal(t, Action("SHORT"), NormalizeAction("short"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(trade("T", ActionBuy)))
	assert.NoError(t, Validate(Decision{Action: ActionHold}))

	assert.Error(t, Validate(Decision{Action: ActionBuy, Quantity: decimal.NewFromInt(1), LimitPrice: decimal.NewFromInt(10)}))
	assert.Error(t, Validate(Decision{Ticker: "T", Action: ActionSell, LimitPrice: decimal.NewFromInt(10)}))
	assert.Error(t, Validate(Decision{Ticker: "T", Action: ActionBuy, Quantity: decimal.NewFromInt(1)}))
	assert.Error(t, Validate(Decision{Action: Action("SHORT")}))
}

func TestHoldDowngrade(t *testing.T) {
	d := trade("T", ActionBuy)
	held := d.Hold("validation rejected: too far from quote")
	assert.Equal(t, ActionHold, held.Action)
	assert.Equal(t, ActionBuy, held.DowngradedFrom)
	assert.True(t, held.Quantity.IsZero())
	assert.True(t, held.LimitPrice.IsZero())

	// Already-HOLD decisions come back unchanged.
	again := held.Hold("other")
	assert.Equal(t, held, again)
}
