package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
)

func TestSessionize_SpanAndCalendar(t *testing.T) {
	out := Sessionize([]models.Event{
		ev("S1", "U1", 30*time.Minute, models.EventPurchased),
		ev("S1", "U1", 0, models.EventViewed),
	})

	require.Len(t, out.Sessions, 1)
	s := out.Sessions[0]
	assert.Equal(t, "S1", s.SessionID)
	assert.Equal(t, "U1", s.UserID)
	assert.Equal(t, t0, s.Start)
	assert.Equal(t, t0.Add(30*time.Minute), s.End)
	assert.Equal(t, 30.0, s.DurationMinutes)
	assert.Equal(t, "Tuesday", s.Weekday)
	assert.Equal(t, 10, s.Month)
	assert.Equal(t, 9, s.Hour)
	assert.Equal(t, 40, s.Week)
	assert.Equal(t, 2, s.EventCount)
}

func TestSessionize_CalendarFieldsInUTC(t *testing.T) {
	// 2019-10-06 23:30 in New York is Monday 03:30 UTC, ISO week 41.
	ny := time.FixedZone("EDT", -4*3600)
	e := ev("S1", "U1", 0, models.EventViewed)
	e.Timestamp = time.Date(2019, time.October, 6, 23, 30, 0, 0, ny)

	out := Sessionize([]models.Event{e})

	require.Len(t, out.Sessions, 1)
	s := out.Sessions[0]
	assert.Equal(t, time.UTC, s.Start.Location())
	assert.Equal(t, "Monday", s.Weekday)
	assert.Equal(t, 3, s.Hour)
	assert.Equal(t, 10, s.Month)
	assert.Equal(t, 41, s.Week)
}

func TestSessionize_SingleEvent(t *testing.T) {
	out := Sessionize([]models.Event{ev("S1", "U1", 5*time.Minute, models.EventViewed)})

	require.Len(t, out.Sessions, 1)
	assert.Equal(t, out.Sessions[0].Start, out.Sessions[0].End)
	assert.Zero(t, out.Sessions[0].DurationMinutes)
}

func TestSessionize_GroupsByPair(t *testing.T) {
	out := Sessionize([]models.Event{
		ev("S2", "U2", 0, models.EventViewed),
		ev("S2", "U1", 0, models.EventViewed),
		ev("S1", "U1", 0, models.EventViewed),
		ev("S2", "U1", time.Minute, models.EventCart),
	})

	require.Len(t, out.Sessions, 3)
	assert.Equal(t, []string{"S1", "S2", "S2"}, sessionIDs(out.Sessions))
	assert.Equal(t, "U1", out.Sessions[1].UserID)
	assert.Equal(t, "U2", out.Sessions[2].UserID)
	assert.Equal(t, 2, out.Sessions[1].EventCount)
}

func TestSessionize_DataQuality(t *testing.T) {
	noSession := ev("", "U1", 0, models.EventViewed)
	noUser := ev("S9", "", 0, models.EventViewed)
	untimed := ev("S3", "U3", 0, models.EventViewed)
	untimed.Timestamp = time.Time{}
	partlyTimed := ev("S4", "U4", 0, models.EventViewed)
	partlyTimed.Timestamp = time.Time{}

	out := Sessionize([]models.Event{
		noSession,
		noUser,
		untimed,
		partlyTimed,
		ev("S4", "U4", time.Minute, models.EventCart),
	})

	assert.Equal(t, models.DataQuality{
		EventsIn:                5,
		DroppedMissingIdentity:  2,
		DroppedMissingTimestamp: 2,
		UnresolvedSessions:      1,
	}, out.Quality)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, "S4", out.Sessions[0].SessionID)
	assert.Equal(t, 1, out.Sessions[0].EventCount)
}

func TestSessionize_Empty(t *testing.T) {
	out := Sessionize(nil)
	assert.Empty(t, out.Sessions)
	assert.Zero(t, out.Quality.EventsIn)
}
