package models

import (
	"strings"
	"time"
)

// EventType is the kind of shopper interaction recorded in the clickstream.
type EventType string

const (
	EventViewed    EventType = "viewed"
	EventCart      EventType = "cart"
	EventRemoved   EventType = "removed"
	EventPurchased EventType = "purchased"
)

// eventTypeAliases maps raw tracker spellings onto the canonical types.
var eventTypeAliases = map[string]EventType{
	"viewed":           EventViewed,
	"view":             EventViewed,
	"cart":             EventCart,
	"add_to_cart":      EventCart,
	"removed":          EventRemoved,
	"remove_from_cart": EventRemoved,
	"purchased":        EventPurchased,
	"purchase":         EventPurchased,
}

// ParseEventType normalizes a raw type string. ok is false for anything that
// is not one of the four funnel event types.
func ParseEventType(raw string) (EventType, bool) {
	t, ok := eventTypeAliases[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// IsKnown reports whether t is one of the canonical funnel types.
func (t EventType) IsKnown() bool {
	switch t {
	case EventViewed, EventCart, EventRemoved, EventPurchased:
		return true
	default:
		return false
	}
}

// Event is a single cleaned clickstream fact. Events are never mutated after
// ingestion.
type Event struct {
	EventID    string    `json:"eventId"`
	Timestamp  time.Time `json:"timestamp"`
	EventType  EventType `json:"eventType"`
	UserID     string    `json:"userId"`
	SessionID  string    `json:"sessionId"`
	ProductID  string    `json:"productId"`
	Price      float64   `json:"price"`
	CategoryID string    `json:"categoryId"`
	Brand      string    `json:"brand"`
}

// IngestEvent is the request body shape accepted by the tracking endpoint.
// EventID is optional; without it the id is derived from the event fields.
type IngestEvent struct {
	EventID    string    `json:"eventId" binding:"omitempty,max=64"`
	Timestamp  time.Time `json:"timestamp" binding:"required"`
	EventType  string    `json:"eventType" binding:"required"`
	UserID     string    `json:"userId" binding:"required"`
	SessionID  string    `json:"sessionId" binding:"required"`
	ProductID  string    `json:"productId"`
	Price      float64   `json:"price"`
	CategoryID string    `json:"categoryId"`
	Brand      string    `json:"brand"`
}
