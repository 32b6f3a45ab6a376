package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mabletask/funnel/models"
	"mabletask/funnel/utils"
)

// maxIngestBatch caps the number of events accepted in one request.
const maxIngestBatch = 10000

// EventWriter appends events to the event store.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []models.Event) error
}

type IngestHandlers struct {
	Events EventWriter
}

func NewIngestHandlers(events EventWriter) *IngestHandlers {
	return &IngestHandlers{Events: events}
}

// TrackEvents accepts a JSON array of events, normalizes their types and
// stores them. Events keep a client supplied eventId; the others get an id
// derived from their fields, so retrying a request does not duplicate events.
func (h *IngestHandlers) TrackEvents(c *gin.Context) {
	var incoming []models.IngestEvent
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(incoming) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	if len(incoming) > maxIngestBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("at most %d events per request", maxIngestBatch)})
		return
	}

	events := make([]models.Event, 0, len(incoming))
	for i, in := range incoming {
		eventType, ok := models.ParseEventType(in.EventType)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("event %d: unknown eventType %q", i, in.EventType)})
			return
		}
		if in.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("event %d: price must not be negative", i)})
			return
		}
		e := models.Event{
			EventID:    in.EventID,
			Timestamp:  in.Timestamp.UTC(),
			EventType:  eventType,
			UserID:     in.UserID,
			SessionID:  in.SessionID,
			ProductID:  in.ProductID,
			Price:      in.Price,
			CategoryID: in.CategoryID,
			Brand:      in.Brand,
		}
		if e.EventID == "" {
			e.EventID = utils.EventID(e)
		}
		events = append(events, e)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Events.InsertEvents(ctx, events); err != nil {
		slog.Error("failed to insert events", "count", len(events), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record events"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": len(events)})
}
