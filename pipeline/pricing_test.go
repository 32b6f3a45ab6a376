package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
)

func obs(product string, price float64) models.ProductPrice {
	return models.ProductPrice{ProductID: product, Price: price, CategoryID: "c1", Brand: "acme"}
}

func TestAnalyzePrices(t *testing.T) {
	tests := []struct {
		name string
		in   []models.ProductPrice
		want models.PriceVariation
	}{
		{
			name: "single price",
			in:   []models.ProductPrice{obs("p1", 12.5)},
			want: models.PriceVariation{ProductID: "p1", MinPrice: 12.5, MaxPrice: 12.5, VariationPct: 0, Observations: 1},
		},
		{
			name: "ten to fifteen",
			in:   []models.ProductPrice{obs("p1", 15), obs("p1", 10)},
			want: models.PriceVariation{ProductID: "p1", MinPrice: 10, MaxPrice: 15, VariationPct: 50, Observations: 2},
		},
		{
			name: "rounded to cents",
			in:   []models.ProductPrice{obs("p1", 3), obs("p1", 4), obs("p1", 3.5)},
			want: models.PriceVariation{ProductID: "p1", MinPrice: 3, MaxPrice: 4, VariationPct: 33.33, Observations: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnalyzePrices(tt.in)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestAnalyzePrices_ZeroMinimum(t *testing.T) {
	got, err := AnalyzePrices([]models.ProductPrice{
		obs("bad", 0),
		obs("bad", 5),
		obs("good", 2),
		obs("good", 3),
	})

	require.Error(t, err)
	var ce *ComputationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "bad", ce.ProductID)

	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ProductID)
	assert.Equal(t, 50.0, got[0].VariationPct)
}

func TestAnalyzePricesParallel_MatchesSequential(t *testing.T) {
	var in []models.ProductPrice
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("p%02d", i)
		for j := 1; j <= 1+i%4; j++ {
			in = append(in, obs(id, float64(10+j*i)))
		}
	}
	in = append(in, obs("neg", -1), obs("zero", 0))

	want, wantErr := AnalyzePrices(in)
	for _, workers := range []int{2, 5} {
		got, err := AnalyzePricesParallel(context.Background(), in, workers)
		assert.Equal(t, want, got)
		assert.Equal(t, ComputationErrors(wantErr), ComputationErrors(err))
	}
	assert.Len(t, ComputationErrors(wantErr), 2)
}

func TestDistinctPriceObservations(t *testing.T) {
	a := ev("S1", "U1", 0, models.EventViewed)
	a.ProductID, a.Price = "p1", 10
	dup := a
	dup.EventID = "other"
	b := a
	b.Price = 12
	zero := a
	zero.Price = 0
	noProduct := a
	noProduct.ProductID = ""
	otherBrand := a
	otherBrand.Brand = "other"

	got := DistinctPriceObservations([]models.Event{b, a, dup, zero, noProduct, otherBrand})

	assert.Equal(t, []models.ProductPrice{
		{ProductID: "p1", Price: 10},
		{ProductID: "p1", Price: 10, Brand: "other"},
		{ProductID: "p1", Price: 12},
	}, got)
}
