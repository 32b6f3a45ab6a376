package pipeline

import (
	"fmt"
	"time"

	"mabletask/funnel/models"
)

var t0 = time.Date(2019, time.October, 1, 9, 0, 0, 0, time.UTC)

var seq int

func ev(session, user string, offset time.Duration, typ models.EventType) models.Event {
	seq++
	return models.Event{
		EventID:   fmt.Sprintf("e%06d", seq),
		Timestamp: t0.Add(offset),
		EventType: typ,
		UserID:    user,
		SessionID: session,
		ProductID: "p1",
		Price:     10,
	}
}

func sessionIDs(sessions []models.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}
	return ids
}
