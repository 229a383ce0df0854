package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"folio/internal/cycle"
	"folio/internal/logger"
	"folio/internal/portfolio"
	"folio/internal/store"
	"folio/internal/store/cyclelog"

	"github.com/gin-gonic/gin"
)

// CycleRunner triggers one full decision cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (cycle.Report, error)
}

// Router exposes cycle triggering and read-only portfolio queries.
type Router struct {
	Runner CycleRunner
	Store  store.PortfolioStore
	Log    CycleLogReader

	runMu sync.Mutex
}

// CycleLogReader reads persisted cycle reports.
type CycleLogReader interface {
	Last(ctx context.Context) (*cyclelog.Record, error)
	ByCycleID(ctx context.Context, cycleID string) (*cyclelog.Record, error)
	Recent(ctx context.Context, limit int) ([]cyclelog.Record, error)
}

func NewRouter(runner CycleRunner, st store.PortfolioStore, log CycleLogReader) *Router {
	return &Router{Runner: runner, Store: st, Log: log}
}

// Register mounts the /api routes on the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/cycle/run", r.handleRunCycle)
	group.GET("/cycle/last", r.handleLastCycle)
	group.GET("/cycles", r.handleRecentCycles)
	group.GET("/cycles/:id", r.handleCycleByID)
	group.GET("/transactions", r.handleTransactions)
	group.GET("/portfolio", r.handlePortfolio)
}

func (r *Router) handleRunCycle(c *gin.Context) {
	if r.Runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle runner not configured"})
		return
	}
	if !r.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "a cycle is already running"})
		return
	}
	defer r.runMu.Unlock()

	report, err := r.Runner.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, portfolio.ErrStoreUnreachable) {
			logger.Errorf("[api] cycle run store unreachable ip=%s err=%v", c.ClientIP(), err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] cycle run failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Degraded cycles (forced HOLD, partial rejections) are still successful
	// cycles from the API's point of view.
	logger.Infof("[api] cycle run ip=%s cycle=%s outcome=%s", c.ClientIP(), report.CycleID, report.Outcome())
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (r *Router) handleLastCycle(c *gin.Context) {
	if r.Log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle log not enabled"})
		return
	}
	rec, err := r.Log.Last(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] last cycle failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycles recorded yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle": rec})
}

func (r *Router) handleRecentCycles(c *gin.Context) {
	if r.Log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle log not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	recs, err := r.Log.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] recent cycles failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": recs, "count": len(recs)})
}

func (r *Router) handleCycleByID(c *gin.Context) {
	if r.Log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle log not enabled"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle id"})
		return
	}
	rec, err := r.Log.ByCycleID(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("[api] cycle detail failed ip=%s id=%s err=%v", c.ClientIP(), id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cycle not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle": rec})
}

func (r *Router) handleTransactions(c *gin.Context) {
	if r.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	txs, err := r.Store.Transactions(ctx, limit)
	if err != nil {
		logger.Errorf("[api] transactions failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

func (r *Router) handlePortfolio(c *gin.Context) {
	if r.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	snap, err := r.Store.ReadSnapshot(ctx)
	if err != nil {
		logger.Errorf("[api] portfolio failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cash":      snap.Cash,
		"positions": snap.Positions,
		"taken_at":  snap.TakenAt,
	})
}
