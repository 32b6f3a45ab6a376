package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mabletask/funnel/models"
)

// SummaryStore persists funnel rows in Postgres. session_id is the primary
// key and inserts never overwrite, so replaying a batch cannot double count.
type SummaryStore struct {
	db *sql.DB
}

func NewSummaryStore(db *sql.DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// InsertSummaries inserts rows whose session_id is not yet present and
// returns how many were new. The batch commits atomically.
func (s *SummaryStore) InsertSummaries(ctx context.Context, rows []models.SessionSummary) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin summary transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_summaries (session_id, viewed, carted, purchased, removed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare summary insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.SessionID, r.Viewed, r.Carted, r.Purchased, r.Removed)
		if err != nil {
			return 0, fmt.Errorf("failed to insert summary %s: %w", r.SessionID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit summaries: %w", err)
	}
	return inserted, nil
}

// DeleteSummariesExcept removes summaries whose session_id is not in keep,
// such as sessions quarantined after they were first summarized.
func (s *SummaryStore) DeleteSummariesExcept(ctx context.Context, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM session_summaries
		WHERE NOT (session_id = ANY($1))
	`, pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("failed to prune summaries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}

// ListSummaries pages through summaries in session_id order, starting after
// the given key.
func (s *SummaryStore) ListSummaries(ctx context.Context, after string, limit int) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, viewed, carted, purchased, removed
		FROM session_summaries
		WHERE session_id > $1
		ORDER BY session_id
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var results []models.SessionSummary
	for rows.Next() {
		var r models.SessionSummary
		if err := rows.Scan(&r.SessionID, &r.Viewed, &r.Carted, &r.Purchased, &r.Removed); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return results, nil
}

func (s *SummaryStore) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	r := &models.SessionSummary{}
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, viewed, carted, purchased, removed
		FROM session_summaries
		WHERE session_id = $1
	`, sessionID).Scan(&r.SessionID, &r.Viewed, &r.Carted, &r.Purchased, &r.Removed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return r, nil
}

// FunnelTotals sums every summary row into site-wide funnel counts.
func (s *SummaryStore) FunnelTotals(ctx context.Context) (models.FunnelTotals, error) {
	var t models.FunnelTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
		       COALESCE(sum(viewed), 0),
		       COALESCE(sum(carted), 0),
		       COALESCE(sum(purchased), 0),
		       COALESCE(sum(removed), 0)
		FROM session_summaries
	`).Scan(&t.Sessions, &t.Viewed, &t.Carted, &t.Purchased, &t.Removed)
	if err != nil {
		return t, fmt.Errorf("failed to query funnel totals: %w", err)
	}
	return t.WithRates(), nil
}
