package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mabletask/funnel/models"
)

// RunStore keeps the report of every pipeline run.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) SaveRun(ctx context.Context, report models.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, started_at, finished_at, status, report)
		VALUES ($1, $2, $3, $4, $5)
	`, report.RunID, report.StartedAt, report.FinishedAt, report.Status, string(body))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}
	return nil
}

func (s *RunStore) LatestRun(ctx context.Context) (*models.RunReport, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM pipeline_runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}

	report := &models.RunReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return report, nil
}
