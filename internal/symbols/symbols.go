// Package symbols resolves client-facing asset aliases (tickers or full
// names, case-insensitive) to the upstream provider's canonical asset ids.
// The table is built once at startup and is immutable afterwards, so it is
// safe for unsynchronized concurrent reads.
package symbols

import (
	"fmt"
	"strings"
)

// Asset describes one supported asset: its canonical upstream id, display
// ticker, display name, and any extra aliases beyond the id and ticker.
type Asset struct {
	ID      string   `json:"id"`      // canonical upstream id, e.g. "bitcoin"
	Symbol  string   `json:"symbol"`  // display ticker, e.g. "BTC"
	Name    string   `json:"name"`    // display name, e.g. "Bitcoin"
	Aliases []string `json:"aliases,omitempty"`
}

// UnknownAssetError is returned when an alias is not in the table. Unknown
// input never falls back to a default asset.
type UnknownAssetError struct {
	Alias string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q", e.Alias)
}

// Table maps aliases to assets. Construct with NewTable; do not mutate after.
type Table struct {
	byAlias map[string]Asset
	assets  []Asset
}

// DefaultAssets lists the assets supported out of the box. Additional assets
// come from configuration; resolution logic never changes per asset.
var DefaultAssets = []Asset{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
	{ID: "solana", Symbol: "SOL", Name: "Solana"},
	{ID: "binancecoin", Symbol: "BNB", Name: "BNB", Aliases: []string{"binance"}},
	{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin"},
	{ID: "ripple", Symbol: "XRP", Name: "XRP"},
	{ID: "cardano", Symbol: "ADA", Name: "Cardano"},
	{ID: "polkadot", Symbol: "DOT", Name: "Polkadot"},
	{ID: "litecoin", Symbol: "LTC", Name: "Litecoin"},
	{ID: "avalanche-2", Symbol: "AVAX", Name: "Avalanche", Aliases: []string{"avalanche"}},
}

// NewTable builds a lookup table from the given assets. Each asset is
// reachable via its id, ticker, name, and declared aliases. Later entries
// win on alias collisions, so config assets can override the defaults.
func NewTable(assets []Asset) *Table {
	t := &Table{
		byAlias: make(map[string]Asset, len(assets)*3),
		assets:  make([]Asset, len(assets)),
	}
	copy(t.assets, assets)
	for _, a := range assets {
		for _, alias := range append([]string{a.ID, a.Symbol, a.Name}, a.Aliases...) {
			if alias == "" {
				continue
			}
			t.byAlias[normalize(alias)] = a
		}
	}
	return t
}

// NewDefaultTable builds a table over DefaultAssets.
func NewDefaultTable() *Table {
	return NewTable(DefaultAssets)
}

// Resolve maps one alias to its asset. Lookup is case-insensitive and trims
// surrounding whitespace. An empty or unknown alias yields UnknownAssetError.
func (t *Table) Resolve(alias string) (Asset, error) {
	a, ok := t.byAlias[normalize(alias)]
	if !ok {
		return Asset{}, &UnknownAssetError{Alias: strings.TrimSpace(alias)}
	}
	return a, nil
}

// Failure records one alias that could not be resolved in a batch.
type Failure struct {
	Alias string
	Err   error
}

// ResolveMany resolves a batch of aliases, preserving input order in the
// returned assets and deduplicating repeated aliases that map to the same
// asset. Unresolvable aliases are collected as failures; the batch is never
// aborted wholesale.
func (t *Table) ResolveMany(aliases []string) ([]Asset, []Failure) {
	var (
		assets   []Asset
		failures []Failure
		seen     = make(map[string]bool, len(aliases))
	)
	for _, alias := range aliases {
		a, err := t.Resolve(alias)
		if err != nil {
			failures = append(failures, Failure{Alias: strings.TrimSpace(alias), Err: err})
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		assets = append(assets, a)
	}
	return assets, failures
}

// Assets returns the full table contents in construction order.
func (t *Table) Assets() []Asset {
	out := make([]Asset, len(t.assets))
	copy(out, t.assets)
	return out
}

// ByID returns the asset with the given canonical id, if present.
func (t *Table) ByID(id string) (Asset, bool) {
	a, ok := t.byAlias[normalize(id)]
	if !ok || a.ID != id {
		return Asset{}, false
	}
	return a, true
}

func normalize(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}
