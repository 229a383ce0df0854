package engine

import (
	"testing"

	"folio/internal/planner"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := fingerprint(&planner.ToolCall{Name: "price_lookup", Args: map[string]string{"ticker": "AAPL"}})
	b := fingerprint(&planner.ToolCall{Name: "price_lookup", Args: map[string]string{"ticker": "AAPL"}})
	c := fingerprint(&planner.ToolCall{Name: "price_lookup", Args: map[string]string{"ticker": "MSFT"}})
	d := fingerprint(&planner.ToolCall{Name: "market_search", Args: map[string]string{"ticker": "AAPL"}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestTranscriptRender(t *testing.T) {
	tr := &transcript{}
	assert.Empty(t, tr.render())

	tr.append(StepRecord{Thought: "look it up", Action: "price_lookup", Args: "ticker=AAPL", Observation: "trades at $100"})
	tr.append(StepRecord{Action: "planner_error", Observation: "bad json"})

	out := tr.render()
	assert.Contains(t, out, "look it up")
	assert.Contains(t, out, "price_lookup(ticker=AAPL)")
	assert.Contains(t, out, "trades at $100")
	assert.Contains(t, out, "planner_error")
	assert.Equal(t, 1, tr.steps[1].Index)
}

func TestRenderArgsSorted(t *testing.T) {
	out := renderArgs(map[string]string{"b": "2", "a": "1", "c": "3"})
	assert.Equal(t, "a=1, b=2, c=3", out)
}
