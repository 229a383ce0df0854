package planner

import (
	"context"
	"errors"

	"folio/internal/portfolio"
)

// Tool names the controller exposes to the planner.
const (
	ToolPriceLookup  = "price_lookup"
	ToolMarketSearch = "market_search"
	ToolFinalDecide  = "final_decision"
)

// ErrBadResponse means the model's output could not be parsed into an
// action. The controller degrades the step and continues.
var ErrBadResponse = errors.New("unparseable planner response")

// ErrUnavailable means the planner backend itself failed (network, 5xx
// after retries).
var ErrUnavailable = errors.New("planner unavailable")

// Kind tags the NextAction variant.
type Kind int

const (
	KindToolCall Kind = iota
	KindDecisionSet
)

// ToolCall is a request to invoke one external capability.
type ToolCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// NextAction is the tagged variant the engine contract returns: either one
// tool call or a terminal decision set, never both.
type NextAction struct {
	Thought   string               `json:"thought,omitempty"`
	Kind      Kind                 `json:"-"`
	ToolCall  *ToolCall            `json:"tool_call,omitempty"`
	Decisions []portfolio.Decision `json:"decisions,omitempty"`
}

// Request is everything the planner sees for one step.
type Request struct {
	Snapshot   portfolio.Snapshot
	Candidates []string
	History    string
	Directives []string
	Step       int
	MaxSteps   int
}

// Engine is the LLM-like tool-using planner. It is a black box; the core
// depends only on this contract.
type Engine interface {
	NextAction(ctx context.Context, req Request) (NextAction, error)
}
