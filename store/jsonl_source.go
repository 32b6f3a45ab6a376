package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"mabletask/funnel/models"
)

// JSONLSource reads a JSON-lines event export, one event object per line.
// It is the event source for offline runs. A line repeating an event_id seen
// earlier in the file is skipped.
type JSONLSource struct {
	Path string
}

func (s JSONLSource) LoadEvents(ctx context.Context) ([]models.Event, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var events []models.Event
	seen := make(map[string]struct{})
	line := 0
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e models.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("failed to decode event on line %d: %w", line, err)
		}
		if e.EventID != "" {
			if _, ok := seen[e.EventID]; ok {
				continue
			}
			seen[e.EventID] = struct{}{}
		}
		if t, ok := models.ParseEventType(string(e.EventType)); ok {
			e.EventType = t
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event file: %w", err)
	}
	return events, nil
}
