package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"folio/internal/cycle"
	"folio/internal/portfolio"
	"folio/internal/store/cyclelog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubRunner struct {
	report cycle.Report
	err    error
}

func (s *stubRunner) RunCycle(ctx context.Context) (cycle.Report, error) {
	return s.report, s.err
}

type stubLog struct {
	last *cyclelog.Record
}

func (s *stubLog) Last(ctx context.Context) (*cyclelog.Record, error) { return s.last, nil }
func (s *stubLog) ByCycleID(ctx context.Context, id string) (*cyclelog.Record, error) {
	if s.last != nil && s.last.CycleID == id {
		return s.last, nil
	}
	return nil, nil
}
func (s *stubLog) Recent(ctx context.Context, limit int) ([]cyclelog.Record, error) {
	if s.last == nil {
		return nil, nil
	}
	return []cyclelog.Record{*s.last}, nil
}

func testRouter(t *testing.T, r *Router) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	r.Register(engine.Group("/api"))
	return engine
}

func TestRunCycle_DegradedStillOK(t *testing.T) {
	runner := &stubRunner{report: cycle.Report{
		CycleID: "abc",
		Forced:  true,
		Reason:  portfolio.ReasonBudgetExhausted,
	}}
	engine := testRouter(t, NewRouter(runner, nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cycle/run", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := gjson.ParseBytes(w.Body.Bytes())
	assert.Equal(t, "abc", body.Get("report.cycle_id").String())
	assert.True(t, body.Get("report.forced").Bool())
}

func TestRunCycle_StoreUnreachableIs503(t *testing.T) {
	runner := &stubRunner{err: portfolio.ErrStoreUnreachable}
	engine := testRouter(t, NewRouter(runner, nil, nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cycle/run", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLastCycle(t *testing.T) {
	report, err := json.Marshal(cycle.Report{CycleID: "abc", CashAfter: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	log := &stubLog{last: &cyclelog.Record{ID: 1, CycleID: "abc", Outcome: "traded", Report: report}}
	engine := testRouter(t, NewRouter(nil, nil, log))

	t.Run("Found", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cycle/last", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "traded", gjson.GetBytes(w.Body.Bytes(), "cycle.outcome").String())
	})

	t.Run("By ID Miss", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cycles/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLastCycle_EmptyLog(t *testing.T) {
	engine := testRouter(t, NewRouter(nil, nil, &stubLog{}))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cycle/last", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunCycle_InternalError(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom")}
	engine := testRouter(t, NewRouter(runner, nil, nil))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cycle/run", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
