package planner

import (
	"fmt"
	"strings"

	"folio/internal/pkg/jsonutil"
	"folio/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ParseAction turns raw model output into a NextAction. It tolerates fenced
// or prose-wrapped JSON but rejects anything that fails the action schema.
func ParseAction(raw string) (NextAction, error) {
	extracted, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return NextAction{}, fmt.Errorf("%w: no JSON found", ErrBadResponse)
	}
	if err := validateActionJSON(extracted); err != nil {
		return NextAction{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	parsed := gjson.Parse(extracted)
	toolName := strings.TrimSpace(parsed.Get("action.tool_name").String())
	params := parsed.Get("action.parameters")
	out := NextAction{Thought: strings.TrimSpace(parsed.Get("thought").String())}

	switch toolName {
	case ToolFinalDecide:
		decisions, err := parseDecisions(params)
		if err != nil {
			return NextAction{}, err
		}
		out.Kind = KindDecisionSet
		out.Decisions = decisions
	case ToolPriceLookup:
		ticker := strings.ToUpper(strings.TrimSpace(params.Get("ticker").String()))
		if ticker == "" {
			// Older prompt revisions used "symbol".
			ticker = strings.ToUpper(strings.TrimSpace(params.Get("symbol").String()))
		}
		if ticker == "" {
			return NextAction{}, fmt.Errorf("%w: price_lookup without ticker", ErrBadResponse)
		}
		out.Kind = KindToolCall
		out.ToolCall = &ToolCall{Name: ToolPriceLookup, Args: map[string]string{"ticker": ticker}}
	case ToolMarketSearch:
		query := strings.TrimSpace(params.Get("query").String())
		if query == "" {
			return NextAction{}, fmt.Errorf("%w: market_search without query", ErrBadResponse)
		}
		out.Kind = KindToolCall
		out.ToolCall = &ToolCall{Name: ToolMarketSearch, Args: map[string]string{"query": query}}
	default:
		// Unknown tools flow back to the transcript as an observation, so
		// still surface them as a tool call.
		args := map[string]string{}
		params.ForEach(func(key, value gjson.Result) bool {
			args[key.String()] = value.String()
			return true
		})
		out.Kind = KindToolCall
		out.ToolCall = &ToolCall{Name: toolName, Args: args}
	}
	return out, nil
}

// parseDecisions accepts either a decisions array or the original flat
// single-decision parameter shape {action, symbol, quantity, target_price}.
func parseDecisions(params gjson.Result) ([]portfolio.Decision, error) {
	arr := params.Get("decisions")
	if !arr.Exists() || !arr.IsArray() {
		d, err := parseDecisionNode(params)
		if err != nil {
			return nil, err
		}
		return []portfolio.Decision{d}, nil
	}
	var out []portfolio.Decision
	var nodeErr error
	arr.ForEach(func(_, node gjson.Result) bool {
		d, err := parseDecisionNode(node)
		if err != nil {
			nodeErr = err
			return false
		}
		out = append(out, d)
		return true
	})
	if nodeErr != nil {
		return nil, nodeErr
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty decision set", ErrBadResponse)
	}
	return out, nil
}

func parseDecisionNode(node gjson.Result) (portfolio.Decision, error) {
	action := portfolio.NormalizeAction(node.Get("action").String())
	ticker := strings.ToUpper(strings.TrimSpace(node.Get("ticker").String()))
	if ticker == "" {
		ticker = strings.ToUpper(strings.TrimSpace(node.Get("symbol").String()))
	}
	d := portfolio.Decision{
		Ticker:    ticker,
		Action:    action,
		Rationale: strings.TrimSpace(node.Get("rationale").String()),
	}
	if action == portfolio.ActionHold {
		return d, nil
	}
	qty, err := decimalField(node, "quantity")
	if err != nil {
		return d, err
	}
	price, err := decimalField(node, "limit_price", "target_price", "price")
	if err != nil {
		return d, err
	}
	d.Quantity = qty
	d.LimitPrice = price
	if err := portfolio.Validate(d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return d, nil
}

func decimalField(node gjson.Result, names ...string) (decimal.Decimal, error) {
	for _, name := range names {
		v := node.Get(name)
		if !v.Exists() {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: bad %s %q", ErrBadResponse, name, v.String())
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%w: missing %s", ErrBadResponse, names[0])
}
