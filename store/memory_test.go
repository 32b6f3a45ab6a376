package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
)

func TestMemoryStore_InsertSummariesIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	n, err := m.InsertSummaries(ctx, []models.SessionSummary{{SessionID: "S1", Viewed: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.InsertSummaries(ctx, []models.SessionSummary{
		{SessionID: "S1", Viewed: 99},
		{SessionID: "S2", Purchased: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s1, err := m.GetSummary(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Viewed)

	rows, err := m.ListSummaries(ctx, "S1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S2", rows[0].SessionID)
}

func TestMemoryStore_Watermarks(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	wm, err := m.LoadWatermark(ctx, "session_summary")
	require.NoError(t, err)
	assert.Empty(t, wm)

	require.NoError(t, m.SaveWatermark(ctx, "session_summary", "S5"))
	wm, _ = m.LoadWatermark(ctx, "session_summary")
	assert.Equal(t, "S5", wm)

	require.NoError(t, m.ResetWatermark(ctx, "session_summary"))
	wm, _ = m.LoadWatermark(ctx, "session_summary")
	assert.Empty(t, wm)
}

func TestMemoryStore_Quarantine(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.ListQuarantine(ctx, models.AnomalyReason("other"), 0)
	assert.ErrorIs(t, err, ErrInvalidReason)

	require.NoError(t, m.ReplaceQuarantine(ctx, map[models.AnomalyReason][]models.Event{
		models.ReasonDurationViolation: {{EventID: "e1", SessionID: "S3"}, {EventID: "e2", SessionID: "S3"}},
	}))
	rows, err := m.ListQuarantine(ctx, models.ReasonDurationViolation, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ReasonDurationViolation, rows[0].Reason)

	// A later run replaces the previous quarantine.
	require.NoError(t, m.ReplaceQuarantine(ctx, nil))
	rows, err = m.ListQuarantine(ctx, models.ReasonDurationViolation, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStore_LatestRun(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveRun(ctx, models.RunReport{RunID: "a"}))
	require.NoError(t, m.SaveRun(ctx, models.RunReport{RunID: "b"}))
	run, err := m.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", run.RunID)
}

func TestJSONLSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := `{"eventId":"e1","timestamp":"2019-10-01T09:00:00Z","eventType":"view","userId":"U1","sessionId":"S1","productId":"p1","price":10}

{"eventId":"e2","timestamp":"2019-10-01T09:30:00Z","eventType":"purchased","userId":"U1","sessionId":"S1","productId":"p1","price":15}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	events, err := JSONLSource{Path: path}.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventViewed, events[0].EventType)
	assert.Equal(t, time.Date(2019, time.October, 1, 9, 30, 0, 0, time.UTC), events[1].Timestamp)
	assert.Equal(t, 15.0, events[1].Price)
}

func TestJSONLSource_SkipsRepeatedEventIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	line := `{"eventId":"e1","timestamp":"2019-10-01T09:00:00Z","eventType":"purchased","userId":"U1","sessionId":"S1","productId":"p1","price":10}`
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"+line+"\n"), 0o600))

	events, err := JSONLSource{Path: path}.LoadEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_DeduplicatesEventIDs(t *testing.T) {
	ctx := context.Background()
	e1 := models.Event{EventID: "e1", SessionID: "S1", EventType: models.EventPurchased}
	m := NewMemoryStore(e1, e1)

	require.NoError(t, m.InsertEvents(ctx, []models.Event{
		e1,
		{EventID: "e2", SessionID: "S1", EventType: models.EventViewed},
		{EventID: "e2", SessionID: "S1", EventType: models.EventViewed},
	}))

	events, err := m.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].EventID)
	assert.Equal(t, "e2", events[1].EventID)
}

func TestMemoryStore_DeleteSummariesExcept(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, err := m.InsertSummaries(ctx, []models.SessionSummary{{SessionID: "S1"}, {SessionID: "S2"}, {SessionID: "S3"}})
	require.NoError(t, err)

	n, err := m.DeleteSummariesExcept(ctx, []string{"S1", "S3", "S9"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.GetSummary(ctx, "S2")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = m.DeleteSummariesExcept(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJSONLSource_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := JSONLSource{Path: filepath.Join(dir, "missing.jsonl")}.LoadEvents(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{\"eventId\":\"e1\"}\nnot json\n"), 0o600))
	_, err = JSONLSource{Path: bad}.LoadEvents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
