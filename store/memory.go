package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"mabletask/funnel/models"
)

// MemoryStore keeps every table in process memory. It backs offline runs
// against an event file and satisfies the same interfaces as the ClickHouse
// and Postgres stores.
type MemoryStore struct {
	mu         sync.RWMutex
	events     []models.Event
	eventIDs   map[string]struct{}
	sessions   []models.Session
	quarantine map[models.AnomalyReason][]models.Event
	summaries  map[string]models.SessionSummary
	watermarks map[string]string
	prices     []models.PriceVariation
	runs       []models.RunReport
}

// NewMemoryStore returns a store holding events. Like InsertEvents, it keeps
// only the first event of each event_id.
func NewMemoryStore(events ...models.Event) *MemoryStore {
	m := &MemoryStore{
		eventIDs:   make(map[string]struct{}),
		quarantine: make(map[models.AnomalyReason][]models.Event),
		summaries:  make(map[string]models.SessionSummary),
		watermarks: make(map[string]string),
	}
	m.appendEvents(events)
	return m
}

// InsertEvents appends events whose event_id is not stored yet. Events
// without an id cannot be matched and are always kept.
func (m *MemoryStore) InsertEvents(_ context.Context, events []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEvents(events)
	return nil
}

func (m *MemoryStore) appendEvents(events []models.Event) {
	for _, e := range events {
		if e.EventID != "" {
			if _, ok := m.eventIDs[e.EventID]; ok {
				continue
			}
			m.eventIDs[e.EventID] = struct{}{}
		}
		m.events = append(m.events, e)
	}
}

func (m *MemoryStore) LoadEvents(_ context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Event(nil), m.events...), nil
}

func (m *MemoryStore) ReplaceSessions(_ context.Context, sessions []models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append([]models.Session(nil), sessions...)
	return nil
}

func (m *MemoryStore) ReplaceQuarantine(_ context.Context, quarantine map[models.AnomalyReason][]models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quarantine = make(map[models.AnomalyReason][]models.Event, len(quarantine))
	for reason, events := range quarantine {
		m.quarantine[reason] = append([]models.Event(nil), events...)
	}
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context, start, end time.Time, limit int) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.Start.Before(start) || s.Start.After(end) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return truncate(out, limit), nil
}

func (m *MemoryStore) ListQuarantine(_ context.Context, reason models.AnomalyReason, limit int) ([]models.QuarantinedEvent, error) {
	if !reason.IsValid() {
		return nil, ErrInvalidReason
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.QuarantinedEvent
	for _, e := range m.quarantine[reason] {
		out = append(out, models.QuarantinedEvent{Event: e, Reason: reason})
	}
	return truncate(out, limit), nil
}

func (m *MemoryStore) InsertSummaries(_ context.Context, rows []models.SessionSummary) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, row := range rows {
		if _, ok := m.summaries[row.SessionID]; ok {
			continue
		}
		m.summaries[row.SessionID] = row
		inserted++
	}
	return inserted, nil
}

// DeleteSummariesExcept removes every summary whose session_id is not in keep.
func (m *MemoryStore) DeleteSummariesExcept(_ context.Context, keep []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	deleted := 0
	for id := range m.summaries {
		if _, ok := wanted[id]; !ok {
			delete(m.summaries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) ListSummaries(_ context.Context, after string, limit int) ([]models.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SessionSummary, 0, len(m.summaries))
	for id, row := range m.summaries {
		if id > after {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return truncate(out, limit), nil
}

func (m *MemoryStore) GetSummary(_ context.Context, sessionID string) (*models.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.summaries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (m *MemoryStore) FunnelTotals(_ context.Context) (models.FunnelTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t models.FunnelTotals
	for _, row := range m.summaries {
		t.Sessions++
		t.Viewed += int64(row.Viewed)
		t.Carted += int64(row.Carted)
		t.Purchased += int64(row.Purchased)
		t.Removed += int64(row.Removed)
	}
	return t.WithRates(), nil
}

func (m *MemoryStore) LoadWatermark(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watermarks[name], nil
}

func (m *MemoryStore) SaveWatermark(_ context.Context, name, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[name] = key
	return nil
}

func (m *MemoryStore) ResetWatermark(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watermarks, name)
	return nil
}

func (m *MemoryStore) ReplacePriceVariations(_ context.Context, rows []models.PriceVariation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append([]models.PriceVariation(nil), rows...)
	return nil
}

func (m *MemoryStore) ListPriceVariations(_ context.Context, minVariation float64, limit int) ([]models.PriceVariation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PriceVariation
	for _, p := range m.prices {
		if p.VariationPct >= minVariation {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VariationPct != out[j].VariationPct {
			return out[i].VariationPct > out[j].VariationPct
		}
		return out[i].ProductID < out[j].ProductID
	})
	return truncate(out, limit), nil
}

func (m *MemoryStore) SaveRun(_ context.Context, report models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, report)
	return nil
}

func (m *MemoryStore) LatestRun(_ context.Context) (*models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, ErrNotFound
	}
	run := m.runs[len(m.runs)-1]
	return &run, nil
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
