package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mabletask/funnel/database"
	"mabletask/funnel/models"
)

// SessionStore holds the derived session metadata and quarantine tables in
// ClickHouse. Both are rebuilt from scratch on every pipeline run.
type SessionStore struct {
	DB *database.ClickHouseClient
}

var sessionTables = []string{`
	CREATE TABLE IF NOT EXISTS sessions (
		session_id       String,
		user_id          String,
		session_start    DateTime64(3, 'UTC'),
		session_end      DateTime64(3, 'UTC'),
		duration_minutes Float64,
		weekday          LowCardinality(String),
		month            UInt8,
		hour             UInt8,
		week             UInt8,
		event_count      UInt32
	) ENGINE = MergeTree
	ORDER BY (session_start, session_id)
`, `
	CREATE TABLE IF NOT EXISTS quarantine_events (
		event_id    String,
		event_time  Nullable(DateTime64(3, 'UTC')),
		event_type  LowCardinality(String),
		user_id     String,
		session_id  String,
		product_id  String,
		price       Float64,
		category_id String,
		brand       LowCardinality(String),
		reason      LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (reason, session_id, event_id)
`}

func NewSessionStore(chClient *database.ClickHouseClient) *SessionStore {
	return &SessionStore{DB: chClient}
}

// EnsureSchema creates the sessions and quarantine_events tables.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	for _, ddl := range sessionTables {
		if err := s.DB.Conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create session tables: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) ReplaceSessions(ctx context.Context, sessions []models.Session) error {
	if err := s.DB.Conn.Exec(ctx, "TRUNCATE TABLE IF EXISTS sessions"); err != nil {
		return fmt.Errorf("failed to truncate sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO sessions (
			session_id, user_id, session_start, session_end, duration_minutes,
			weekday, month, hour, week, event_count
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare session batch: %w", err)
	}

	for _, ss := range sessions {
		err := batch.Append(
			ss.SessionID,
			ss.UserID,
			ss.Start.UTC(),
			ss.End.UTC(),
			ss.DurationMinutes,
			ss.Weekday,
			uint8(ss.Month),
			uint8(ss.Hour),
			uint8(ss.Week),
			uint32(ss.EventCount),
		)
		if err != nil {
			return fmt.Errorf("failed to append session %s: %w", ss.SessionID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send session batch: %w", err)
	}
	slog.Info("stored sessions", "count", len(sessions))
	return nil
}

func (s *SessionStore) ReplaceQuarantine(ctx context.Context, quarantine map[models.AnomalyReason][]models.Event) error {
	if err := s.DB.Conn.Exec(ctx, "TRUNCATE TABLE IF EXISTS quarantine_events"); err != nil {
		return fmt.Errorf("failed to truncate quarantine: %w", err)
	}

	total := 0
	for _, events := range quarantine {
		total += len(events)
	}
	if total == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO quarantine_events (
			event_id, event_time, event_type, user_id, session_id,
			product_id, price, category_id, brand, reason
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare quarantine batch: %w", err)
	}

	for reason, events := range quarantine {
		for _, e := range events {
			if err := appendEvent(batch.Append, e, string(reason)); err != nil {
				return fmt.Errorf("failed to append quarantined event %s: %w", e.EventID, err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send quarantine batch: %w", err)
	}
	slog.Info("stored quarantined events", "count", total)
	return nil
}

// ListSessions returns clean sessions that started within [start, end].
func (s *SessionStore) ListSessions(ctx context.Context, start, end time.Time, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT session_id, user_id, session_start, session_end, duration_minutes,
		       weekday, month, hour, week, event_count
		FROM sessions
		WHERE session_start >= ? AND session_start <= ?
		ORDER BY session_start ASC, session_id ASC
		LIMIT ?
	`, start, end, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var results []models.Session
	for rows.Next() {
		var (
			ss                models.Session
			month, hour, week uint8
			eventCount        uint32
		)
		if err := rows.Scan(&ss.SessionID, &ss.UserID, &ss.Start, &ss.End, &ss.DurationMinutes,
			&ss.Weekday, &month, &hour, &week, &eventCount); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		ss.Month, ss.Hour, ss.Week, ss.EventCount = int(month), int(hour), int(week), int(eventCount)
		results = append(results, ss)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for sessions: %w", err)
	}
	return results, nil
}

// ListQuarantine returns quarantined events for one reason.
func (s *SessionStore) ListQuarantine(ctx context.Context, reason models.AnomalyReason, limit int) ([]models.QuarantinedEvent, error) {
	if !reason.IsValid() {
		return nil, ErrInvalidReason
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.Conn.Query(ctx, `
		SELECT event_id, event_time, event_type, user_id, session_id,
		       product_id, price, category_id, brand
		FROM quarantine_events
		WHERE reason = ?
		ORDER BY session_id ASC, event_id ASC
		LIMIT ?
	`, string(reason), uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query quarantine: %w", err)
	}
	defer rows.Close()

	var results []models.QuarantinedEvent
	for rows.Next() {
		var (
			q         = models.QuarantinedEvent{Reason: reason}
			ts        *time.Time
			eventType string
		)
		if err := rows.Scan(&q.EventID, &ts, &eventType, &q.UserID, &q.SessionID,
			&q.ProductID, &q.Price, &q.CategoryID, &q.Brand); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine row: %w", err)
		}
		if ts != nil {
			q.Timestamp = *ts
		}
		q.EventType = models.EventType(eventType)
		results = append(results, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for quarantine: %w", err)
	}
	return results, nil
}
