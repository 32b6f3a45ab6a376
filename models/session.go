package models

import "time"

// Session is the derived aggregate of all events one user produced under one
// session identifier.
type Session struct {
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"durationMinutes"`
	Weekday         string    `json:"weekday"`
	Month           int       `json:"month"`
	Hour            int       `json:"hour"`
	Week            int       `json:"week"`
	EventCount      int       `json:"eventCount"`
}

// AnomalyReason names why a session was quarantined.
type AnomalyReason string

const (
	ReasonIdentityViolation AnomalyReason = "identity_violation"
	ReasonDurationViolation AnomalyReason = "duration_violation"
)

// AnomalyReasons lists every reason in a stable order.
var AnomalyReasons = []AnomalyReason{ReasonIdentityViolation, ReasonDurationViolation}

// IsValid reports whether r is a known quarantine reason.
func (r AnomalyReason) IsValid() bool {
	return r == ReasonIdentityViolation || r == ReasonDurationViolation
}

// AnomalousSession records a flagged session_id and the reason it was flagged.
type AnomalousSession struct {
	SessionID string        `json:"sessionId"`
	Reason    AnomalyReason `json:"reason"`
	UserCount int           `json:"userCount"`
	// DurationMinutes is only set for duration violations.
	DurationMinutes float64 `json:"durationMinutes,omitempty"`
}

// QuarantinedEvent is a raw event held back from clean analysis.
type QuarantinedEvent struct {
	Event
	Reason AnomalyReason `json:"reason"`
}
