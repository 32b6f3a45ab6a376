package models

// ProductPrice is one distinct observed (product, price) tuple. Every
// historical price of a product is kept.
type ProductPrice struct {
	ProductID  string  `json:"productId"`
	Price      float64 `json:"price"`
	CategoryID string  `json:"categoryId"`
	Brand      string  `json:"brand"`
}

// PriceVariation is the spread between the cheapest and most expensive
// observed price of a product.
type PriceVariation struct {
	ProductID    string  `json:"productId"`
	MinPrice     float64 `json:"minPrice"`
	MaxPrice     float64 `json:"maxPrice"`
	VariationPct float64 `json:"variationPct"`
	Observations int     `json:"observations"`
}
