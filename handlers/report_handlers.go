package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mabletask/funnel/cache"
	"mabletask/funnel/models"
	"mabletask/funnel/store"
	"mabletask/funnel/utils"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type SummaryReader interface {
	ListSummaries(ctx context.Context, after string, limit int) ([]models.SessionSummary, error)
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	FunnelTotals(ctx context.Context) (models.FunnelTotals, error)
}

type SessionReader interface {
	ListSessions(ctx context.Context, start, end time.Time, limit int) ([]models.Session, error)
	ListQuarantine(ctx context.Context, reason models.AnomalyReason, limit int) ([]models.QuarantinedEvent, error)
}

type PriceReader interface {
	ListPriceVariations(ctx context.Context, minVariation float64, limit int) ([]models.PriceVariation, error)
}

type RunReader interface {
	LatestRun(ctx context.Context) (*models.RunReport, error)
}

// ReportHandlers serves the pipeline's output tables. Aggregate responses are
// cached under the id of the latest run, so a new run never serves stale
// numbers.
type ReportHandlers struct {
	Summaries SummaryReader
	Sessions  SessionReader
	Prices    PriceReader
	Runs      RunReader
	Cache     cache.Cacher
	CacheTTL  time.Duration
}

func (h *ReportHandlers) ListSummaries(c *gin.Context) {
	limit, err := utils.ParseLimit(c.Query("limit"), defaultPageSize, maxPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Summaries.ListSummaries(ctx, c.Query("after"), limit)
	if err != nil {
		slog.Error("failed to list summaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session summaries"})
		return
	}

	next := ""
	if len(rows) == limit {
		next = rows[len(rows)-1].SessionID
	}
	c.JSON(http.StatusOK, gin.H{"summaries": rows, "next": next})
}

func (h *ReportHandlers) GetSummary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	row, err := h.Summaries.GetSummary(ctx, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session summary not found"})
			return
		}
		slog.Error("failed to get summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session summary"})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *ReportHandlers) GetFunnel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	key := "funnel:" + h.runKey(ctx)
	var totals models.FunnelTotals
	if err := cache.GetJSON(ctx, h.Cache, key, &totals); err == nil {
		c.JSON(http.StatusOK, totals)
		return
	}

	totals, err := h.Summaries.FunnelTotals(ctx)
	if err != nil {
		slog.Error("failed to compute funnel totals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve funnel totals"})
		return
	}
	h.store(ctx, key, totals)
	c.JSON(http.StatusOK, totals)
}

func (h *ReportHandlers) ListSessions(c *gin.Context) {
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), defaultPageSize, maxPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListSessions(ctx, start, end, limit)
	if err != nil {
		slog.Error("failed to list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"startDate": start.Format(time.RFC3339),
		"endDate":   end.Format(time.RFC3339),
		"sessions":  sessions,
	})
}

func (h *ReportHandlers) ListQuarantine(c *gin.Context) {
	reason := models.AnomalyReason(c.Param("reason"))
	if !reason.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown reason %q, use %q or %q",
			reason, models.ReasonIdentityViolation, models.ReasonDurationViolation)})
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"), defaultPageSize, maxPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.Sessions.ListQuarantine(ctx, reason, limit)
	if err != nil {
		slog.Error("failed to list quarantine", "reason", reason, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve quarantined events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reason": reason, "events": events})
}

func (h *ReportHandlers) ListPriceVariations(c *gin.Context) {
	minVariation := 0.0
	if v := c.Query("min_variation"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'min_variation' parameter. Must be a non-negative number."})
			return
		}
		minVariation = parsed
	}
	limit, err := utils.ParseLimit(c.Query("limit"), defaultPageSize, maxPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("prices:%s:%g:%d", h.runKey(ctx), minVariation, limit)
	var rows []models.PriceVariation
	if err := cache.GetJSON(ctx, h.Cache, key, &rows); err == nil {
		c.JSON(http.StatusOK, rows)
		return
	}

	rows, err = h.Prices.ListPriceVariations(ctx, minVariation, limit)
	if err != nil {
		slog.Error("failed to list price variations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve price variations"})
		return
	}
	if rows == nil {
		rows = []models.PriceVariation{}
	}
	h.store(ctx, key, rows)
	c.JSON(http.StatusOK, rows)
}

func (h *ReportHandlers) LatestRun(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	report, err := h.Runs.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No pipeline run recorded yet"})
			return
		}
		slog.Error("failed to load latest run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pipeline run"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// runKey identifies the data generation that cached aggregates belong to.
func (h *ReportHandlers) runKey(ctx context.Context) string {
	report, err := h.Runs.LatestRun(ctx)
	if err != nil {
		return "none"
	}
	return report.RunID
}

func (h *ReportHandlers) store(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, h.Cache, key, v, h.CacheTTL); err != nil {
		slog.Warn("failed to cache response", "key", key, "error", err)
	}
}
