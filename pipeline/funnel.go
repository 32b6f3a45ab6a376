package pipeline

import (
	"context"
	"fmt"
	"sort"

	"mabletask/funnel/models"
)

// SummaryWatermark names the watermark tracking funnel aggregation progress.
const SummaryWatermark = "session_summary"

// SummaryStore persists funnel rows with insert-if-absent semantics: a row
// whose session_id already exists is left untouched and not counted.
type SummaryStore interface {
	InsertSummaries(ctx context.Context, rows []models.SessionSummary) (int, error)
}

// WatermarkStore persists the last session_id whose batch was committed.
type WatermarkStore interface {
	LoadWatermark(ctx context.Context, name string) (string, error)
	SaveWatermark(ctx context.Context, name, key string) error
	ResetWatermark(ctx context.Context, name string) error
}

// Summarize counts the events of each session in sessionIDs by funnel type.
// Every requested session gets a row, even one whose events all carry
// unrecognized types. Events of other sessions are ignored. Rows are ordered
// by session_id.
func Summarize(events []models.Event, sessionIDs []string) []models.SessionSummary {
	rows := make(map[string]*models.SessionSummary, len(sessionIDs))
	for _, id := range sessionIDs {
		rows[id] = &models.SessionSummary{SessionID: id}
	}
	for _, e := range events {
		row, ok := rows[e.SessionID]
		if !ok {
			continue
		}
		switch e.EventType {
		case models.EventViewed:
			row.Viewed++
		case models.EventCart:
			row.Carted++
		case models.EventPurchased:
			row.Purchased++
		case models.EventRemoved:
			row.Removed++
		}
	}

	out := make([]models.SessionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// SummarizeParallel is Summarize fanned out over workers partitions keyed by
// session_id. The result does not depend on workers.
func SummarizeParallel(ctx context.Context, events []models.Event, sessionIDs []string, workers int) ([]models.SessionSummary, error) {
	if workers <= 1 {
		return Summarize(events, sessionIDs), nil
	}

	idParts := make([][]string, workers)
	for _, id := range sessionIDs {
		p := partitionOf(id, workers)
		idParts[p] = append(idParts[p], id)
	}
	eventParts := make([][]models.Event, workers)
	for _, e := range events {
		p := partitionOf(e.SessionID, workers)
		eventParts[p] = append(eventParts[p], e)
	}

	results := make([][]models.SessionSummary, workers)
	err := forEachPartition(ctx, workers, func(_ context.Context, part int) error {
		results[part] = Summarize(eventParts[part], idParts[part])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sessions: %w", err)
	}

	var out []models.SessionSummary
	for _, r := range results {
		out = append(out, r...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// BatchResult reports the work done by Aggregator.Aggregate.
type BatchResult struct {
	Batches   int
	Inserted  int
	Skipped   int
	Watermark string
}

// Aggregator summarizes clean sessions in bounded batches, resuming after the
// persisted watermark. Every session_id greater than the watermark is
// processed in ascending order; BatchSize only bounds the work per commit.
type Aggregator struct {
	Summaries  SummaryStore
	Watermarks WatermarkStore
	BatchSize  int
	Workers    int
}

// Aggregate processes all remaining session ids. The watermark is advanced
// only after a batch has been stored, so an interrupted call resumes at the
// first uncommitted batch. Once every batch is stored the watermark is
// cleared: the next call starts from the first session_id again, and rows
// that already exist are skipped by the store.
func (a *Aggregator) Aggregate(ctx context.Context, events []models.Event, sessionIDs []string) (BatchResult, error) {
	var res BatchResult

	mark, err := a.Watermarks.LoadWatermark(ctx, SummaryWatermark)
	if err != nil {
		return res, fmt.Errorf("failed to load watermark: %w", err)
	}
	res.Watermark = mark

	ids := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if id > mark {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = dedupeSorted(ids)
	if len(ids) == 0 {
		if mark != "" {
			if err := a.Watermarks.ResetWatermark(ctx, SummaryWatermark); err != nil {
				return res, fmt.Errorf("failed to clear watermark: %w", err)
			}
		}
		return res, nil
	}

	bySession := make(map[string][]models.Event)
	for _, e := range events {
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}

	size := a.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for lo := 0; lo < len(ids); lo += size {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		hi := min(lo+size, len(ids))
		batch := ids[lo:hi]

		var batchEvents []models.Event
		for _, id := range batch {
			batchEvents = append(batchEvents, bySession[id]...)
		}
		rows, err := SummarizeParallel(ctx, batchEvents, batch, a.Workers)
		if err != nil {
			return res, err
		}
		inserted, err := a.Summaries.InsertSummaries(ctx, rows)
		if err != nil {
			return res, fmt.Errorf("failed to store summary batch ending at %q: %w", batch[len(batch)-1], err)
		}

		last := batch[len(batch)-1]
		if err := a.Watermarks.SaveWatermark(ctx, SummaryWatermark, last); err != nil {
			return res, fmt.Errorf("failed to save watermark %q: %w", last, err)
		}
		res.Batches++
		res.Inserted += inserted
		res.Skipped += len(rows) - inserted
		res.Watermark = last
	}

	if err := a.Watermarks.ResetWatermark(ctx, SummaryWatermark); err != nil {
		return res, fmt.Errorf("failed to clear watermark: %w", err)
	}
	return res, nil
}

func dedupeSorted(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
