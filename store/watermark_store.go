package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// WatermarkStore records how far incremental aggregation has progressed.
type WatermarkStore struct {
	db *sql.DB
}

func NewWatermarkStore(db *sql.DB) *WatermarkStore {
	return &WatermarkStore{db: db}
}

// LoadWatermark returns the last committed key, or "" if none was saved.
func (s *WatermarkStore) LoadWatermark(ctx context.Context, name string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT last_key FROM pipeline_watermarks WHERE name = $1`, name).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load watermark %s: %w", name, err)
	}
	return key, nil
}

func (s *WatermarkStore) SaveWatermark(ctx context.Context, name, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_watermarks (name, last_key, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET last_key = EXCLUDED.last_key, updated_at = EXCLUDED.updated_at
	`, name, key)
	if err != nil {
		return fmt.Errorf("failed to save watermark %s: %w", name, err)
	}
	return nil
}

func (s *WatermarkStore) ResetWatermark(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_watermarks WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to reset watermark %s: %w", name, err)
	}
	return nil
}
