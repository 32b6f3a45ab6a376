package utils

import (
	"bytes"
	"crypto/sha256"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"mabletask/funnel/models"
)

// EventID derives a ULID from the content of an event. The time part is the
// event timestamp, so ids sort by event time. The entropy part comes from a
// SHA-256 of the event fields, so a resubmitted event gets the id it had
// before and the event store collapses the copies.
func EventID(e models.Event) string {
	h := sha256.New()
	for _, field := range []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.EventType),
		e.UserID,
		e.SessionID,
		e.ProductID,
		strconv.FormatFloat(e.Price, 'f', -1, 64),
		e.CategoryID,
		e.Brand,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)

	id, err := ulid.New(ulid.Timestamp(e.Timestamp), bytes.NewReader(sum))
	if err != nil {
		// Timestamps outside the ULID range keep the content hash only.
		id = ulid.MustNew(0, bytes.NewReader(sum))
	}
	return id.String()
}
