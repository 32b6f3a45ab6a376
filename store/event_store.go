package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mabletask/funnel/database"
	"mabletask/funnel/models"
)

// EventStore is the deduplicated, append-only event table in ClickHouse.
// ReplacingMergeTree collapses rows that share an event_id; reads use FINAL
// so duplicates never reach the pipeline.
type EventStore struct {
	DB *database.ClickHouseClient
}

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS events (
		event_id    String,
		event_time  Nullable(DateTime64(3, 'UTC')),
		event_type  LowCardinality(String),
		user_id     String,
		session_id  String,
		product_id  String,
		price       Float64,
		category_id String,
		brand       LowCardinality(String)
	) ENGINE = ReplacingMergeTree
	ORDER BY (session_id, event_id)
`

func NewEventStore(chClient *database.ClickHouseClient) *EventStore {
	return &EventStore{DB: chClient}
}

// EnsureSchema creates the events table if it does not exist.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if err := s.DB.Conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

func (s *EventStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, event_time, event_type, user_id, session_id,
			product_id, price, category_id, brand
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, e := range events {
		if err := appendEvent(batch.Append, e); err != nil {
			return fmt.Errorf("failed to append event %s to batch: %w", e.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	slog.Debug("inserted events", "count", len(events))
	return nil
}

// LoadEvents streams the whole deduplicated table ordered by event_id.
func (s *EventStore) LoadEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT event_id, event_time, event_type, user_id, session_id,
		       product_id, price, category_id, brand
		FROM events FINAL
		ORDER BY event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e         models.Event
			ts        *time.Time
			eventType string
		)
		if err := rows.Scan(&e.EventID, &ts, &eventType, &e.UserID, &e.SessionID,
			&e.ProductID, &e.Price, &e.CategoryID, &e.Brand); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if ts != nil {
			e.Timestamp = *ts
		}
		e.EventType = models.EventType(eventType)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error while loading events: %w", err)
	}

	slog.Info("loaded events", "count", len(events))
	return events, nil
}

// appendEvent writes e in events column order. A zero timestamp is stored
// as NULL so it survives the round trip as missing.
func appendEvent(appendRow func(v ...any) error, e models.Event, extra ...any) error {
	var ts *time.Time
	if !e.Timestamp.IsZero() {
		t := e.Timestamp.UTC()
		ts = &t
	}
	values := []any{
		e.EventID, ts, string(e.EventType), e.UserID, e.SessionID,
		e.ProductID, e.Price, e.CategoryID, e.Brand,
	}
	return appendRow(append(values, extra...)...)
}
