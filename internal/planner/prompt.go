package planner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"folio/internal/portfolio"
)

const systemPrompt = `You are an autonomous investment agent managing a portfolio. ` +
	`Return only valid JSON responses in the exact format requested.`

const responseContract = `Return valid JSON only, in this format:
{
    "thought": "your investment analysis",
    "action": {
        "tool_name": "name_of_tool_to_use",
        "parameters": {"parameter_name": "parameter_value"}
    }
}`

const toolDefinitions = `AVAILABLE TOOLS:
1. price_lookup(ticker: str): Get a verified, current market price for a ticker.
2. market_search(query: str): Search the web for current market information and news.
3. final_decision(decisions: [{action, ticker, quantity, limit_price, rationale}]): Commit the cycle's terminal decision set. Use action "BUY", "SELL" or "HOLD"; at most one decision per ticker. A bare [{"action": "HOLD"}] means no trades this cycle.`

// buildUserPrompt renders the objective, the (tail-truncated) transcript and
// any guardrail directives into a single prompt, the way the planner sees
// the world each step.
func buildUserPrompt(req Request, maxHistory int) string {
	var b strings.Builder

	b.WriteString("OBJECTIVE:\n")
	fmt.Fprintf(&b, "Cash Available: $%s\n", req.Snapshot.Cash.StringFixed(2))
	b.WriteString("Current Portfolio: ")
	b.WriteString(renderPositions(req.Snapshot))
	b.WriteString("\n")
	if len(req.Candidates) > 0 {
		fmt.Fprintf(&b, "Candidate tickers to consider: %s\n", strings.Join(req.Candidates, ", "))
	}
	b.WriteString(`Investment objectives:
1. If no holdings in portfolio: analyze market data and identify good investment opportunities.
2. If holdings exist: analyze current positions and decide whether to hold, buy more, sell some, or open new positions.
Verify prices with price_lookup before committing a trade; limit prices far from verified quotes will be rejected.
`)

	history := req.History
	if maxHistory > 0 && len(history) > maxHistory {
		history = "..." + history[len(history)-maxHistory:]
	}
	if history == "" {
		history = "(cycle just started)"
	}
	b.WriteString("\nPREVIOUS ACTIONS:\n")
	b.WriteString(history)
	b.WriteString("\n")

	fmt.Fprintf(&b, "\nThis is reasoning step %d of %d.\n", req.Step+1, req.MaxSteps)
	for _, d := range req.Directives {
		b.WriteString("DIRECTIVE: ")
		b.WriteString(d)
		b.WriteString("\n")
	}

	b.WriteString("\nYour task: analyze the data and make your next decision. ")
	b.WriteString(responseContract)
	b.WriteString("\n\n")
	b.WriteString(toolDefinitions)
	return b.String()
}

func renderPositions(snap portfolio.Snapshot) string {
	if len(snap.Positions) == 0 {
		return "[]"
	}
	type entry struct {
		Ticker    string `json:"ticker"`
		Quantity  string `json:"quantity"`
		CostBasis string `json:"cost_basis"`
	}
	tickers := make([]string, 0, len(snap.Positions))
	for t := range snap.Positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	entries := make([]entry, 0, len(tickers))
	for _, t := range tickers {
		p := snap.Positions[t]
		entries = append(entries, entry{
			Ticker:    p.Ticker,
			Quantity:  p.Quantity.String(),
			CostBasis: p.CostBasis.StringFixed(2),
		})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
