package store

import (
	"context"
	"database/sql"
	"fmt"

	"mabletask/funnel/models"
)

// PriceStore holds the per-product price variation table.
type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

// ReplacePriceVariations swaps the whole table for rows in one transaction.
func (s *PriceStore) ReplacePriceVariations(ctx context.Context, rows []models.PriceVariation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_price_variations`); err != nil {
		return fmt.Errorf("failed to clear price variations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_price_variations (product_id, min_price, max_price, variation_pct, observations)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare price insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ProductID, r.MinPrice, r.MaxPrice, r.VariationPct, r.Observations); err != nil {
			return fmt.Errorf("failed to insert price variation for %s: %w", r.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price variations: %w", err)
	}
	return nil
}

// ListPriceVariations returns products whose variation is at least
// minVariation percent, largest spread first.
func (s *PriceStore) ListPriceVariations(ctx context.Context, minVariation float64, limit int) ([]models.PriceVariation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, min_price, max_price, variation_pct, observations
		FROM product_price_variations
		WHERE variation_pct >= $1
		ORDER BY variation_pct DESC, product_id ASC
		LIMIT $2
	`, minVariation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price variations: %w", err)
	}
	defer rows.Close()

	var results []models.PriceVariation
	for rows.Next() {
		var r models.PriceVariation
		if err := rows.Scan(&r.ProductID, &r.MinPrice, &r.MaxPrice, &r.VariationPct, &r.Observations); err != nil {
			return nil, fmt.Errorf("failed to scan price variation row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price variations: %w", err)
	}
	return results, nil
}
