package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
)

func ingestBody(eventType string, price float64) map[string]any {
	return map[string]any{
		"timestamp": time.Date(2019, time.October, 1, 9, 0, 0, 0, time.UTC),
		"eventType": eventType,
		"userId":    "U1",
		"sessionId": "S1",
		"productId": "p1",
		"price":     price,
	}
}

func TestTrackEvents(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/events", []any{
		ingestBody("view", 10),
		ingestBody("add_to_cart", 10),
		ingestBody("purchased", 10),
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 3.0, decode[map[string]float64](t, w)["accepted"])

	events, err := s.mem.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventViewed, events[0].EventType)
	assert.Equal(t, models.EventCart, events[1].EventType)
	assert.Equal(t, models.EventPurchased, events[2].EventType)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)
	assert.NotEqual(t, events[1].EventID, events[2].EventID)
}

func TestTrackEvents_RetryDoesNotDuplicate(t *testing.T) {
	s := newTestServer(t)
	body := []any{ingestBody("viewed", 10), ingestBody("purchased", 10)}

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/events", body).Code)
	first, err := s.mem.LoadEvents(context.Background())
	require.NoError(t, err)

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/events", body).Code)
	second, err := s.mem.LoadEvents(context.Background())
	require.NoError(t, err)

	assert.Len(t, second, 2)
	assert.Equal(t, first, second)
}

func TestTrackEvents_ClientEventID(t *testing.T) {
	s := newTestServer(t)
	withID := ingestBody("viewed", 10)
	withID["eventId"] = "client-1"
	again := ingestBody("cart", 10)
	again["eventId"] = "client-1"

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/events", []any{withID}).Code)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/events", []any{again}).Code)

	events, err := s.mem.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "client-1", events[0].EventID)
	assert.Equal(t, models.EventViewed, events[0].EventType)
}

func TestTrackEvents_Rejects(t *testing.T) {
	missingSession := ingestBody("viewed", 1)
	delete(missingSession, "sessionId")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown type", []any{ingestBody("wishlist", 1)}, http.StatusBadRequest},
		{"negative price", []any{ingestBody("viewed", -1)}, http.StatusBadRequest},
		{"missing session id", []any{missingSession}, http.StatusBadRequest},
		{"not an array", ingestBody("viewed", 1), http.StatusBadRequest},
		{"empty array", []any{}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(t, http.MethodPost, "/api/events", tt.body)
			assert.Equal(t, tt.want, w.Code)

			events, err := s.mem.LoadEvents(context.Background())
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}
