// Package pipeline turns the deduplicated clickstream into sessions, splits
// anomalous sessions off into quarantine and aggregates the clean remainder
// into per-session funnel rows and per-product price spreads.
package pipeline

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxSessionMinutes    = 1440
	DefaultBatchSize            = 5000
	DefaultWorkers              = 4
	DefaultPlaceholderSessionID = "unknown"
)

// Policy holds the tunable parameters of a pipeline run.
type Policy struct {
	// MaxSessionMinutes is the longest plausible session. Sessions strictly
	// longer than this are quarantined as duration violations.
	MaxSessionMinutes float64
	// PlaceholderSessionIDs are values substituted upstream for missing
	// session ids. They never describe a real session.
	PlaceholderSessionIDs []string
	// BatchSize bounds how many session ids are summarized per persisted
	// batch. It has no effect on the result.
	BatchSize int
	// Workers is the number of partitions aggregation stages fan out to.
	Workers int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxSessionMinutes:     DefaultMaxSessionMinutes,
		PlaceholderSessionIDs: []string{DefaultPlaceholderSessionID},
		BatchSize:             DefaultBatchSize,
		Workers:               DefaultWorkers,
	}
}

// Validate rejects policies that would make a run meaningless.
func (p Policy) Validate() error {
	if p.MaxSessionMinutes <= 0 {
		return fmt.Errorf("max session minutes must be positive, got %v", p.MaxSessionMinutes)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", p.BatchSize)
	}
	if p.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", p.Workers)
	}
	return nil
}

func (p Policy) isPlaceholder(sessionID string) bool {
	for _, ph := range p.PlaceholderSessionIDs {
		if strings.EqualFold(sessionID, ph) {
			return true
		}
	}
	return false
}
