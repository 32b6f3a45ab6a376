package models

import "time"

// DataQuality counts input rows the sessionizer could not use.
type DataQuality struct {
	EventsIn                int `json:"eventsIn"`
	DroppedMissingIdentity  int `json:"droppedMissingIdentity"`
	DroppedMissingTimestamp int `json:"droppedMissingTimestamp"`
	UnresolvedSessions      int `json:"unresolvedSessions"`
}

// RunReport describes one execution of the session pipeline.
type RunReport struct {
	RunID               string                `json:"runId"`
	StartedAt           time.Time             `json:"startedAt"`
	FinishedAt          time.Time             `json:"finishedAt"`
	Status              string                `json:"status"`
	Error               string                `json:"error,omitempty"`
	DataQuality         DataQuality           `json:"dataQuality"`
	SessionsTotal       int                   `json:"sessionsTotal"`
	SessionsClean       int                   `json:"sessionsClean"`
	QuarantinedSessions map[AnomalyReason]int `json:"quarantinedSessions"`
	QuarantinedEvents   map[AnomalyReason]int `json:"quarantinedEvents"`
	SummariesInserted   int                   `json:"summariesInserted"`
	SummariesSkipped    int                   `json:"summariesSkipped"`
	SummariesPruned     int                   `json:"summariesPruned"`
	SummaryBatches      int                   `json:"summaryBatches"`
	Watermark           string                `json:"watermark"`
	ProductsPriced      int                   `json:"productsPriced"`
	PriceErrors         []string              `json:"priceErrors,omitempty"`
}

const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
