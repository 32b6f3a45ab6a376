package models

// SessionSummary is the funnel row for one clean session.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Viewed    int    `json:"viewed"`
	Carted    int    `json:"carted"`
	Purchased int    `json:"purchased"`
	Removed   int    `json:"removed"`
}

// Total is the number of funnel events counted for the session.
func (s SessionSummary) Total() int {
	return s.Viewed + s.Carted + s.Purchased + s.Removed
}

// FunnelTotals rolls summaries up into site-wide funnel numbers.
type FunnelTotals struct {
	Sessions           int64   `json:"sessions"`
	Viewed             int64   `json:"viewed"`
	Carted             int64   `json:"carted"`
	Purchased          int64   `json:"purchased"`
	Removed            int64   `json:"removed"`
	ViewToCartRate     float64 `json:"viewToCartRate"`
	CartToPurchaseRate float64 `json:"cartToPurchaseRate"`
}

// WithRates fills the conversion rates from the counters.
func (f FunnelTotals) WithRates() FunnelTotals {
	if f.Viewed > 0 {
		f.ViewToCartRate = float64(f.Carted) / float64(f.Viewed)
	}
	if f.Carted > 0 {
		f.CartToPurchaseRate = float64(f.Purchased) / float64(f.Carted)
	}
	return f
}
