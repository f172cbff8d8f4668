// Package models defines the data structures shared across the gateway:
// normalized market snapshots, history series, and news articles.
package models

import (
	"encoding/json"
	"fmt"
)

// MarketSnapshot is the normalized current-state record for one asset.
// Numeric fields are pointers so that data absent upstream serializes as
// null rather than a fabricated zero.
type MarketSnapshot struct {
	ID        string   `json:"id"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name,omitempty"`
	Image     string   `json:"image,omitempty"`
	Rank      int      `json:"rank,omitempty"`
	Price     *float64 `json:"price"`
	Change24h *float64 `json:"change24h"`
	MarketCap *float64 `json:"marketCap"`
	Volume24h *float64 `json:"volume24h"`
	High24h   *float64 `json:"high24h,omitempty"`
	Low24h    *float64 `json:"low24h,omitempty"`
}

// HistoryPoint is one (timestamp, price) observation. It marshals to the
// upstream wire shape, a two-element array [timestampMillis, price].
type HistoryPoint struct {
	Timestamp int64   // epoch milliseconds, upstream-supplied
	Price     float64 // USD
}

// MarshalJSON encodes the point as [timestamp, price].
func (p HistoryPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Price})
}

// UnmarshalJSON decodes a [timestamp, price] pair.
func (p *HistoryPoint) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("history point: %w", err)
	}
	p.Timestamp = int64(pair[0])
	p.Price = pair[1]
	return nil
}

// HistorySeries is an ordered price time series for one asset, ascending by
// timestamp. An empty Points slice is a valid result (no data upstream),
// distinct from a fetch failure.
type HistorySeries struct {
	Symbol string         `json:"symbol"`
	Days   int            `json:"days"`
	Points []HistoryPoint `json:"points"`
}

// NewsArticle is a single crypto news headline from an RSS source.
type NewsArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	Summary     string `json:"summary,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}
