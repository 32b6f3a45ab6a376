package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mabletask/funnel/models"
)

// EventSource yields the deduplicated event stream.
type EventSource interface {
	LoadEvents(ctx context.Context) ([]models.Event, error)
}

// SessionWriter replaces the derived session and quarantine tables.
type SessionWriter interface {
	ReplaceSessions(ctx context.Context, sessions []models.Session) error
	ReplaceQuarantine(ctx context.Context, quarantine map[models.AnomalyReason][]models.Event) error
}

// SummaryTable is the summary store as a run uses it. Rows of sessions that
// are no longer clean are removed before new rows are inserted.
type SummaryTable interface {
	SummaryStore
	DeleteSummariesExcept(ctx context.Context, keep []string) (int, error)
}

type PriceWriter interface {
	ReplacePriceVariations(ctx context.Context, rows []models.PriceVariation) error
}

type RunRecorder interface {
	SaveRun(ctx context.Context, report models.RunReport) error
}

// Stores bundles the collaborators a Runner reads from and writes to.
type Stores struct {
	Events     EventSource
	Sessions   SessionWriter
	Summaries  SummaryTable
	Watermarks WatermarkStore
	Prices     PriceWriter
	Runs       RunRecorder
}

// Runner executes the full pipeline. Only one run may be active at a time.
type Runner struct {
	stores  Stores
	policy  Policy
	logger  *slog.Logger
	running atomic.Bool
	now     func() time.Time
}

func NewRunner(stores Stores, policy Policy, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		stores: stores,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the policy the runner was built with.
func (r *Runner) Policy() Policy { return r.policy }

// Run loads the event stream and produces every derived table. The returned
// report is also persisted through Stores.Runs, for failed runs too.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	report := &models.RunReport{
		RunID:               uuid.New().String(),
		StartedAt:           r.now(),
		QuarantinedSessions: make(map[models.AnomalyReason]int),
		QuarantinedEvents:   make(map[models.AnomalyReason]int),
	}
	log := r.logger.With("run_id", report.RunID)
	log.Info("pipeline run started")

	err := r.execute(ctx, report, log)
	report.FinishedAt = r.now()
	if err != nil {
		report.Status = models.RunStatusFailed
		report.Error = err.Error()
		log.Error("pipeline run failed", "error", err)
	} else {
		report.Status = models.RunStatusSucceeded
		log.Info("pipeline run finished",
			"sessions_clean", report.SessionsClean,
			"summaries_inserted", report.SummariesInserted,
			"duration", report.FinishedAt.Sub(report.StartedAt),
		)
	}

	if r.stores.Runs != nil {
		if saveErr := r.stores.Runs.SaveRun(context.WithoutCancel(ctx), *report); saveErr != nil {
			log.Error("failed to save run report", "error", saveErr)
		}
	}
	return report, err
}

func (r *Runner) execute(ctx context.Context, report *models.RunReport, log *slog.Logger) error {
	events, err := r.stores.Events.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	sessionized := Sessionize(events)
	report.DataQuality = sessionized.Quality
	report.SessionsTotal = len(sessionized.Sessions)
	if q := sessionized.Quality; q.DroppedMissingIdentity+q.DroppedMissingTimestamp > 0 {
		log.Warn("events excluded from sessionization",
			"missing_identity", q.DroppedMissingIdentity,
			"missing_timestamp", q.DroppedMissingTimestamp,
			"unresolved_sessions", q.UnresolvedSessions,
		)
	}

	classified := Classify(sessionized.Sessions, events, r.policy)
	report.SessionsClean = len(classified.Clean)
	for _, reason := range models.AnomalyReasons {
		report.QuarantinedSessions[reason] = classified.SessionCount(reason)
		report.QuarantinedEvents[reason] = classified.EventCount(reason)
		log.Info("sessions quarantined",
			"reason", reason,
			"sessions", report.QuarantinedSessions[reason],
			"events", report.QuarantinedEvents[reason],
		)
	}

	if err := r.stores.Sessions.ReplaceSessions(ctx, classified.Clean); err != nil {
		return fmt.Errorf("failed to store sessions: %w", err)
	}
	if err := r.stores.Sessions.ReplaceQuarantine(ctx, classified.Quarantine); err != nil {
		return fmt.Errorf("failed to store quarantine: %w", err)
	}

	cleanIDs := classified.CleanSessionIDs()
	pruned, err := r.stores.Summaries.DeleteSummariesExcept(ctx, cleanIDs)
	if err != nil {
		return fmt.Errorf("failed to prune summaries: %w", err)
	}
	report.SummariesPruned = pruned
	if pruned > 0 {
		log.Info("removed summaries of sessions no longer clean", "count", pruned)
	}

	agg := &Aggregator{
		Summaries:  r.stores.Summaries,
		Watermarks: r.stores.Watermarks,
		BatchSize:  r.policy.BatchSize,
		Workers:    r.policy.Workers,
	}
	batches, err := agg.Aggregate(ctx, classified.CleanEvents, cleanIDs)
	report.SummariesInserted = batches.Inserted
	report.SummariesSkipped = batches.Skipped
	report.SummaryBatches = batches.Batches
	report.Watermark = batches.Watermark
	if err != nil {
		return fmt.Errorf("failed to aggregate funnel: %w", err)
	}

	variations, priceErr := AnalyzePricesParallel(ctx, DistinctPriceObservations(events), r.policy.Workers)
	if priceErr != nil {
		failures := ComputationErrors(priceErr)
		if len(failures) == 0 {
			return priceErr
		}
		for _, ce := range failures {
			report.PriceErrors = append(report.PriceErrors, ce.Error())
			log.Error("price variation rejected", "product_id", ce.ProductID, "error", ce)
		}
	}
	if err := r.stores.Prices.ReplacePriceVariations(ctx, variations); err != nil {
		return fmt.Errorf("failed to store price variations: %w", err)
	}
	report.ProductsPriced = len(variations)
	return nil
}

// ResetWatermark drops the progress of an interrupted aggregation so the next
// run starts from the first clean session. Rows that already exist are kept
// as they are.
func (r *Runner) ResetWatermark(ctx context.Context) error {
	if err := r.stores.Watermarks.ResetWatermark(ctx, SummaryWatermark); err != nil {
		return fmt.Errorf("failed to reset watermark: %w", err)
	}
	r.logger.Info("summary watermark reset")
	return nil
}
