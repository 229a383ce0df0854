package engine

import (
	"context"
	"testing"
	"time"

	"folio/internal/planner"
	"folio/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type scriptedPlanner struct {
	requests []planner.Request
	script   func(step int, req planner.Request) (planner.NextAction, error)
}

func (p *scriptedPlanner) NextAction(_ context.Context, req planner.Request) (planner.NextAction, error) {
	step := len(p.requests)
	p.requests = append(p.requests, req)
	return p.script(step, req)
}

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) GetQuote(ctx context.Context, ticker string) (portfolio.Quote, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(portfolio.Quote), args.Error(1)
}

type MockIntel struct {
	mock.Mock
}

func (m *MockIntel) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func priceCall(ticker string) (planner.NextAction, error) {
	return planner.NextAction{
		Thought: "check price",
		Kind:    planner.KindToolCall,
		ToolCall: &planner.ToolCall{
			Name: planner.ToolPriceLookup,
			Args: map[string]string{"ticker": ticker},
		},
	}, nil
}

func testSnapshot(cash string) portfolio.Snapshot {
	return portfolio.Snapshot{
		Cash:      decimal.RequireFromString(cash),
		Positions: map[string]portfolio.Position{},
		TakenAt:   time.Now(),
	}
}

func TestController_LoopDetection(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("GetQuote", mock.Anything, "AAPL").Return(
		portfolio.Quote{Ticker: "AAPL", Price: decimal.NewFromInt(100), Source: "yahoo", At: time.Now()}, nil)

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return priceCall("AAPL")
	}}
	c := NewController(p, oracle, nil, []string{"AAPL"}, time.Second)

	out := c.Run(context.Background(), testSnapshot("1000"), Guardrails{
		MaxSteps:        7,
		EscalateAfter:   4,
		RepeatThreshold: 2,
		TolerancePct:    2.0,
	})

	assert.True(t, out.Forced)
	assert.Equal(t, portfolio.ReasonLoopDetected, out.Reason)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, portfolio.ActionHold, out.Decisions[0].Action)
	assert.Equal(t, string(portfolio.ReasonLoopDetected), out.Decisions[0].Rationale)

	// The identical call executes twice; the third repetition terminates
	// without executing the tool.
	oracle.AssertNumberOfCalls(t, "GetQuote", 2)
	require.Len(t, p.requests, 3)
	// The third request carries the forbid directive raised at the threshold.
	require.NotEmpty(t, p.requests[2].Directives)
	assert.Contains(t, p.requests[2].Directives[0], planner.ToolPriceLookup)
}

func TestController_LoopResetOnDifferentArgs(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("GetQuote", mock.Anything, mock.Anything).Return(
		portfolio.Quote{Ticker: "AAPL", Price: decimal.NewFromInt(100), Source: "yahoo", At: time.Now()}, nil)

	tickers := []string{"AAPL", "MSFT", "AAPL", "MSFT", "AAPL", "MSFT", "AAPL"}
	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return priceCall(tickers[step])
	}}
	c := NewController(p, oracle, nil, tickers, time.Second)

	out := c.Run(context.Background(), testSnapshot("1000"), Guardrails{MaxSteps: 7, RepeatThreshold: 2})

	// Alternating calls never trip the repeat threshold; the budget does.
	assert.True(t, out.Forced)
	assert.Equal(t, portfolio.ReasonBudgetExhausted, out.Reason)
	oracle.AssertNumberOfCalls(t, "GetQuote", 7)
}

func TestController_BudgetExhaustion(t *testing.T) {
	intel := new(MockIntel)
	intel.On("Search", mock.Anything, mock.Anything).Return("some news", nil)

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return planner.NextAction{
			Kind: planner.KindToolCall,
			ToolCall: &planner.ToolCall{
				Name: planner.ToolMarketSearch,
				Args: map[string]string{"query": req.History + "next"},
			},
		}, nil
	}}
	c := NewController(p, nil, intel, nil, time.Second)

	out := c.Run(context.Background(), testSnapshot("1000"), Guardrails{MaxSteps: 5, RepeatThreshold: 2})

	assert.True(t, out.Forced)
	assert.Equal(t, portfolio.ReasonBudgetExhausted, out.Reason)
	assert.Equal(t, string(portfolio.ReasonBudgetExhausted), out.Decisions[0].Rationale)
	assert.Len(t, p.requests, 5)
	assert.Len(t, out.Steps, 5)
}

func TestController_EscalationDirectives(t *testing.T) {
	intel := new(MockIntel)
	intel.On("Search", mock.Anything, mock.Anything).Return("ok", nil)

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return planner.NextAction{
			Kind: planner.KindToolCall,
			ToolCall: &planner.ToolCall{
				Name: planner.ToolMarketSearch,
				Args: map[string]string{"query": req.History + "q"},
			},
		}, nil
	}}
	c := NewController(p, nil, intel, nil, time.Second)

	c.Run(context.Background(), testSnapshot("1000"), Guardrails{MaxSteps: 6, EscalateAfter: 4, RepeatThreshold: 2})

	require.Len(t, p.requests, 6)
	for step := 0; step < 4; step++ {
		assert.Empty(t, p.requests[step].Directives, "step %d should carry no urgency", step)
	}
	require.NotEmpty(t, p.requests[4].Directives)
	require.NotEmpty(t, p.requests[5].Directives)
	// The last step warns this is the final one.
	assert.Contains(t, p.requests[5].Directives[len(p.requests[5].Directives)-1], "FINAL")
}

func TestController_DecisionSetValidated(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("GetQuote", mock.Anything, "TICK").Return(
		portfolio.Quote{Ticker: "TICK", Price: decimal.NewFromInt(50), Source: "yahoo", At: time.Now()}, nil)

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return planner.NextAction{
			Thought: "buy it",
			Kind:    planner.KindDecisionSet,
			Decisions: []portfolio.Decision{{
				Ticker:     "TICK",
				Action:     portfolio.ActionBuy,
				Quantity:   decimal.NewFromInt(100),
				LimitPrice: decimal.RequireFromString("50.10"),
			}},
		}, nil
	}}
	c := NewController(p, oracle, nil, []string{"TICK"}, time.Second)

	out := c.Run(context.Background(), testSnapshot("10000"), Guardrails{MaxSteps: 7, RepeatThreshold: 2, TolerancePct: 2.0})

	assert.False(t, out.Forced)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, portfolio.ActionBuy, out.Decisions[0].Action)
	require.Contains(t, out.Quotes, "TICK")
	assert.True(t, out.Quotes["TICK"].Price.Equal(decimal.NewFromInt(50)))
}

func TestController_DecisionSetDowngradedOnDeviation(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("GetQuote", mock.Anything, "TICK").Return(
		portfolio.Quote{Ticker: "TICK", Price: decimal.NewFromInt(50), Source: "yahoo", At: time.Now()}, nil)

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return planner.NextAction{
			Kind: planner.KindDecisionSet,
			Decisions: []portfolio.Decision{{
				Ticker:     "TICK",
				Action:     portfolio.ActionBuy,
				Quantity:   decimal.NewFromInt(100),
				LimitPrice: decimal.NewFromInt(60), // 20% off the verified quote
			}},
		}, nil
	}}
	c := NewController(p, oracle, nil, []string{"TICK"}, time.Second)

	out := c.Run(context.Background(), testSnapshot("10000"), Guardrails{MaxSteps: 7, RepeatThreshold: 2, TolerancePct: 2.0})

	assert.False(t, out.Forced)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, portfolio.ActionHold, out.Decisions[0].Action)
	assert.Equal(t, portfolio.ActionBuy, out.Decisions[0].DowngradedFrom)
}

func TestController_PlannerErrorsDegradeToHold(t *testing.T) {
	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		return planner.NextAction{}, planner.ErrUnavailable
	}}
	c := NewController(p, nil, nil, nil, time.Second)

	out := c.Run(context.Background(), testSnapshot("1000"), Guardrails{MaxSteps: 3, RepeatThreshold: 2})

	assert.True(t, out.Forced)
	// Zero successful steps is an outage, not an exhausted budget.
	assert.Equal(t, portfolio.ReasonPlannerUnavailable, out.Reason)
	// Each failure is visible to the model on the next step.
	require.Len(t, p.requests, 3)
	assert.Contains(t, p.requests[1].History, "planner_error")
}

func TestController_UnknownToolObservation(t *testing.T) {
	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		if step == 0 {
			return planner.NextAction{
				Kind:     planner.KindToolCall,
				ToolCall: &planner.ToolCall{Name: "crystal_ball", Args: map[string]string{"q": "future"}},
			}, nil
		}
		return planner.NextAction{
			Kind:      planner.KindDecisionSet,
			Decisions: []portfolio.Decision{{Action: portfolio.ActionHold, Rationale: "no edge"}},
		}, nil
	}}
	c := NewController(p, nil, nil, nil, time.Second)

	out := c.Run(context.Background(), testSnapshot("1000"), Guardrails{MaxSteps: 7, RepeatThreshold: 2})

	assert.False(t, out.Forced)
	require.Len(t, p.requests, 2)
	assert.Contains(t, p.requests[1].History, "Unknown tool")
	assert.Contains(t, p.requests[1].History, planner.ToolFinalDecide)
}

func TestController_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedPlanner{script: func(step int, req planner.Request) (planner.NextAction, error) {
		t.Fatal("planner must not run after cancellation")
		return planner.NextAction{}, nil
	}}
	c := NewController(p, nil, nil, nil, time.Second)

	out := c.Run(ctx, testSnapshot("1000"), Guardrails{MaxSteps: 7, RepeatThreshold: 2})

	assert.True(t, out.Forced)
	assert.Equal(t, portfolio.ReasonDeadlineExceeded, out.Reason)
}
