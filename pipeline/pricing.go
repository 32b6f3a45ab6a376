package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"mabletask/funnel/models"
)

var hundred = decimal.NewFromInt(100)

// DistinctPriceObservations extracts the distinct (product, price, category,
// brand) tuples from events. Events without a product or with a non-positive
// price are skipped here so the analyzer never sees them.
func DistinctPriceObservations(events []models.Event) []models.ProductPrice {
	seen := make(map[models.ProductPrice]struct{})
	var out []models.ProductPrice
	for _, e := range events {
		if e.ProductID == "" || e.Price <= 0 {
			continue
		}
		obs := models.ProductPrice{
			ProductID:  e.ProductID,
			Price:      e.Price,
			CategoryID: e.CategoryID,
			Brand:      e.Brand,
		}
		if _, ok := seen[obs]; ok {
			continue
		}
		seen[obs] = struct{}{}
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.Brand < b.Brand
	})
	return out
}

type priceRange struct {
	min, max decimal.Decimal
	count    int
}

// AnalyzePrices computes min, max and variation percentage per product.
// Products whose minimum price is not positive are left out of the result
// and reported as joined *ComputationError values; every other product is
// still returned. Rows are ordered by product_id.
func AnalyzePrices(observations []models.ProductPrice) ([]models.PriceVariation, error) {
	ranges := make(map[string]*priceRange)
	for _, o := range observations {
		p := decimal.NewFromFloat(o.Price)
		r, ok := ranges[o.ProductID]
		if !ok {
			ranges[o.ProductID] = &priceRange{min: p, max: p, count: 1}
			continue
		}
		if p.LessThan(r.min) {
			r.min = p
		}
		if p.GreaterThan(r.max) {
			r.max = p
		}
		r.count++
	}

	out := make([]models.PriceVariation, 0, len(ranges))
	var errs []error
	for id, r := range ranges {
		if r.min.Sign() <= 0 {
			errs = append(errs, &ComputationError{
				ProductID: id,
				MinPrice:  r.min.InexactFloat64(),
				Reason:    "minimum price must be positive",
			})
			continue
		}
		pct := r.max.Sub(r.min).Div(r.min).Mul(hundred).Round(2)
		out = append(out, models.PriceVariation{
			ProductID:    id,
			MinPrice:     r.min.InexactFloat64(),
			MaxPrice:     r.max.InexactFloat64(),
			VariationPct: pct.InexactFloat64(),
			Observations: r.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].(*ComputationError).ProductID < errs[j].(*ComputationError).ProductID
	})
	return out, errors.Join(errs...)
}

// AnalyzePricesParallel is AnalyzePrices partitioned by product_id.
func AnalyzePricesParallel(ctx context.Context, observations []models.ProductPrice, workers int) ([]models.PriceVariation, error) {
	if workers <= 1 {
		return AnalyzePrices(observations)
	}

	parts := make([][]models.ProductPrice, workers)
	for _, o := range observations {
		p := partitionOf(o.ProductID, workers)
		parts[p] = append(parts[p], o)
	}

	results := make([][]models.PriceVariation, workers)
	partErrs := make([]error, workers)
	err := forEachPartition(ctx, workers, func(_ context.Context, part int) error {
		results[part], partErrs[part] = AnalyzePrices(parts[part])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze prices: %w", err)
	}

	var out []models.PriceVariation
	var errs []error
	for part := range results {
		out = append(out, results[part]...)
		for _, ce := range ComputationErrors(partErrs[part]) {
			errs = append(errs, ce)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].(*ComputationError).ProductID < errs[j].(*ComputationError).ProductID
	})
	return out, errors.Join(errs...)
}
