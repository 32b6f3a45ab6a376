package pipeline

import (
	"sort"

	"mabletask/funnel/models"
)

// Classification is the result of running both anomaly passes.
type Classification struct {
	// Clean holds the sessions that survived both passes.
	Clean []models.Session
	// CleanEvents are the timed events of clean sessions, in input order.
	CleanEvents []models.Event
	// Anomalies lists every flagged session_id with its reason.
	Anomalies []models.AnomalousSession
	// Quarantine holds every raw event of a flagged session_id, keyed by
	// the reason its session was flagged.
	Quarantine map[models.AnomalyReason][]models.Event
}

// SessionCount returns how many session ids were flagged for reason.
func (c Classification) SessionCount(reason models.AnomalyReason) int {
	n := 0
	for _, a := range c.Anomalies {
		if a.Reason == reason {
			n++
		}
	}
	return n
}

// EventCount returns how many raw events were quarantined for reason.
func (c Classification) EventCount(reason models.AnomalyReason) int {
	return len(c.Quarantine[reason])
}

// CleanSessionIDs returns the distinct clean session ids in ascending order.
func (c Classification) CleanSessionIDs() []string {
	ids := make([]string, 0, len(c.Clean))
	for _, s := range c.Clean {
		ids = append(ids, s.SessionID)
	}
	sort.Strings(ids)
	return ids
}

// Classify runs the identity pass and then the duration pass over sessions,
// and routes the raw events of every flagged session_id into quarantine.
// The duration pass only sees sessions that survived the identity pass.
// Neither input slice is modified.
func Classify(sessions []models.Session, events []models.Event, policy Policy) Classification {
	afterIdentity, identity := identityPass(sessions, policy)
	clean, duration := durationPass(afterIdentity, policy.MaxSessionMinutes)

	flagged := make(map[string]models.AnomalyReason, len(identity)+len(duration))
	for _, a := range identity {
		flagged[a.SessionID] = a.Reason
	}
	for _, a := range duration {
		flagged[a.SessionID] = a.Reason
	}

	owner := make(map[string]string, len(clean))
	for _, s := range clean {
		owner[s.SessionID] = s.UserID
	}

	out := Classification{
		Clean:      clean,
		Anomalies:  append(identity, duration...),
		Quarantine: make(map[models.AnomalyReason][]models.Event, len(models.AnomalyReasons)),
	}
	for _, e := range events {
		if reason, ok := flagged[e.SessionID]; ok {
			out.Quarantine[reason] = append(out.Quarantine[reason], e)
			continue
		}
		if user, ok := owner[e.SessionID]; ok && user == e.UserID && !e.Timestamp.IsZero() {
			out.CleanEvents = append(out.CleanEvents, e)
		}
	}
	return out
}

// identityPass flags every session_id observed with more than one user_id,
// and every placeholder session_id regardless of its user count.
func identityPass(sessions []models.Session, policy Policy) ([]models.Session, []models.AnomalousSession) {
	users := make(map[string]map[string]struct{})
	for _, s := range sessions {
		set, ok := users[s.SessionID]
		if !ok {
			set = make(map[string]struct{})
			users[s.SessionID] = set
		}
		set[s.UserID] = struct{}{}
	}

	var anomalies []models.AnomalousSession
	bad := make(map[string]bool)
	for id, set := range users {
		if len(set) > 1 || policy.isPlaceholder(id) {
			bad[id] = true
			anomalies = append(anomalies, models.AnomalousSession{
				SessionID: id,
				Reason:    models.ReasonIdentityViolation,
				UserCount: len(set),
			})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].SessionID < anomalies[j].SessionID })

	survivors := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if !bad[s.SessionID] {
			survivors = append(survivors, s)
		}
	}
	return survivors, anomalies
}

// durationPass flags sessions strictly longer than maxMinutes. A session
// exactly at the limit stays clean.
func durationPass(sessions []models.Session, maxMinutes float64) ([]models.Session, []models.AnomalousSession) {
	survivors := make([]models.Session, 0, len(sessions))
	var anomalies []models.AnomalousSession
	for _, s := range sessions {
		if s.DurationMinutes > maxMinutes {
			anomalies = append(anomalies, models.AnomalousSession{
				SessionID:       s.SessionID,
				Reason:          models.ReasonDurationViolation,
				UserCount:       1,
				DurationMinutes: s.DurationMinutes,
			})
			continue
		}
		survivors = append(survivors, s)
	}
	return survivors, anomalies
}
