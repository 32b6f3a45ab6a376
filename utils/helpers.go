package utils

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultLookback is the window used when a request names no start time.
const DefaultLookback = 7 * 24 * time.Hour

// ParseTimeRange reads RFC3339 start/end query values. A missing end means
// now, a missing start means DefaultLookback before end.
func ParseTimeRange(startParam, endParam string, now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if endParam != "" {
		t, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'end' timestamp format, use RFC3339 (e.g., 2006-01-02T15:04:05Z)")
		}
		end = t
	}

	start := end.Add(-DefaultLookback)
	if startParam != "" {
		t, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'start' timestamp format, use RFC3339 (e.g., 2006-01-02T15:04:05Z)")
		}
		start = t
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("'start' must not be after 'end'")
	}
	return start, end, nil
}

// ParseLimit reads a positive integer limit, capped at maxLimit. An empty value
// yields def.
func ParseLimit(param string, def, maxLimit int) (int, error) {
	if param == "" {
		return def, nil
	}
	n, err := strconv.Atoi(param)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid 'limit' parameter, must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
