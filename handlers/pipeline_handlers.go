package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mabletask/funnel/models"
	"mabletask/funnel/pipeline"
)

// PipelineRunner is the control surface of pipeline.Runner.
type PipelineRunner interface {
	Run(ctx context.Context) (*models.RunReport, error)
	ResetWatermark(ctx context.Context) error
}

type PipelineHandlers struct {
	Runner PipelineRunner
}

func NewPipelineHandlers(runner PipelineRunner) *PipelineHandlers {
	return &PipelineHandlers{Runner: runner}
}

// TriggerRun executes a pipeline run synchronously and returns its report.
func (h *PipelineHandlers) TriggerRun(c *gin.Context) {
	report, err := h.Runner.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A pipeline run is already in progress"})
			return
		}
		slog.Error("pipeline run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Pipeline run failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *PipelineHandlers) ResetWatermark(c *gin.Context) {
	if err := h.Runner.ResetWatermark(c.Request.Context()); err != nil {
		slog.Error("failed to reset watermark", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset summary watermark"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Summary watermark reset"})
}
