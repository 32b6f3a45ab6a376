package pipeline

import (
	"sort"
	"time"

	"mabletask/funnel/models"
)

type sessionKey struct {
	sessionID string
	userID    string
}

type sessionSpan struct {
	start, end time.Time
	events     int
}

// Sessionized is the output of Sessionize.
type Sessionized struct {
	// Sessions holds one row per (session_id, user_id) pair, ordered by
	// session_id then user_id.
	Sessions []models.Session
	Quality  models.DataQuality
}

// Sessionize groups events by (session_id, user_id) and derives the span and
// calendar attributes of each group. Events without a session id, user id or
// timestamp are counted in Quality instead of being grouped. A pair whose
// events all lack timestamps produces no session and counts as unresolved.
func Sessionize(events []models.Event) Sessionized {
	out := Sessionized{Quality: models.DataQuality{EventsIn: len(events)}}

	spans := make(map[sessionKey]*sessionSpan)
	untimed := make(map[sessionKey]struct{})

	for _, e := range events {
		if e.SessionID == "" || e.UserID == "" {
			out.Quality.DroppedMissingIdentity++
			continue
		}
		key := sessionKey{sessionID: e.SessionID, userID: e.UserID}
		if e.Timestamp.IsZero() {
			out.Quality.DroppedMissingTimestamp++
			untimed[key] = struct{}{}
			continue
		}

		span, ok := spans[key]
		if !ok {
			spans[key] = &sessionSpan{start: e.Timestamp, end: e.Timestamp, events: 1}
			continue
		}
		if e.Timestamp.Before(span.start) {
			span.start = e.Timestamp
		}
		if e.Timestamp.After(span.end) {
			span.end = e.Timestamp
		}
		span.events++
	}

	for key := range untimed {
		if _, ok := spans[key]; !ok {
			out.Quality.UnresolvedSessions++
		}
	}

	out.Sessions = make([]models.Session, 0, len(spans))
	for key, span := range spans {
		out.Sessions = append(out.Sessions, newSession(key, span))
	}
	sortSessions(out.Sessions)
	return out
}

// newSession derives the calendar fields in UTC whatever offset the events
// were recorded with.
func newSession(key sessionKey, span *sessionSpan) models.Session {
	start, end := span.start.UTC(), span.end.UTC()
	_, week := start.ISOWeek()
	return models.Session{
		SessionID:       key.sessionID,
		UserID:          key.userID,
		Start:           start,
		End:             end,
		DurationMinutes: end.Sub(start).Minutes(),
		Weekday:         start.Weekday().String(),
		Month:           int(start.Month()),
		Hour:            start.Hour(),
		Week:            week,
		EventCount:      span.events,
	}
}

func sortSessions(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].SessionID != sessions[j].SessionID {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		return sessions[i].UserID < sessions[j].UserID
	})
}
