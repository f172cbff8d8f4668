package coingecko

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/zenzoro/zenzoro/internal/symbols"
	"github.com/zenzoro/zenzoro/pkg/models"
)

// Normalizers convert the provider's raw shapes into the gateway's stable
// schema. They are pure: no I/O, no shared state, total over every
// documented field-absence case.
//
// Field synonym precedence, stable across calls (first match wins):
//
//	price:  current_price > price > last
//	volume: total_volume > volume_24h

// NormalizeSimplePrice shapes a /simple/price response into snapshots keyed
// by canonical id. Ids missing from the raw response get no entry; the
// caller reports those as not found rather than fabricating zero prices.
func NormalizeSimplePrice(raw SimplePriceResponse, requested []symbols.Asset) map[string]models.MarketSnapshot {
	out := make(map[string]models.MarketSnapshot, len(requested))
	for _, asset := range requested {
		entry, ok := raw[asset.ID]
		if !ok {
			continue
		}
		out[asset.ID] = models.MarketSnapshot{
			ID:        asset.ID,
			Symbol:    asset.Symbol,
			Name:      asset.Name,
			Price:     entry.USD,
			Change24h: entry.USDChange24h,
			MarketCap: entry.USDMarketCap,
			Volume24h: entry.USDVolume24h,
		}
	}
	return out
}

// NormalizeMarkets shapes a /coins/markets response into snapshots keyed by
// canonical id, applying the package's synonym precedence.
func NormalizeMarkets(raw []Market) map[string]models.MarketSnapshot {
	out := make(map[string]models.MarketSnapshot, len(raw))
	for _, m := range raw {
		if m.ID == "" {
			continue
		}
		out[m.ID] = models.MarketSnapshot{
			ID:        m.ID,
			Symbol:    strings.ToUpper(m.Symbol),
			Name:      m.Name,
			Image:     m.Image,
			Rank:      m.MarketCapRank,
			Price:     firstNonNil(m.CurrentPrice, m.Price, m.Last),
			Change24h: m.PriceChangePct24h,
			MarketCap: m.MarketCap,
			Volume24h: firstNonNil(m.TotalVolume, m.Volume24h),
			High24h:   m.High24h,
			Low24h:    m.Low24h,
		}
	}
	return out
}

// NormalizeMarketChart shapes a /coins/{id}/market_chart response into an
// ordered series. Malformed entries (wrong arity, non-numeric) are dropped,
// not fatal; the dropped count is returned for diagnostics. Zero surviving
// points is a valid empty series.
func NormalizeMarketChart(raw *MarketChart) ([]models.HistoryPoint, int) {
	points := make([]models.HistoryPoint, 0, len(raw.Prices))
	dropped := 0
	for _, entry := range raw.Prices {
		var pair []float64
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
			dropped++
			continue
		}
		points = append(points, models.HistoryPoint{
			Timestamp: int64(pair[0]),
			Price:     pair[1],
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
	return points, dropped
}

func firstNonNil(candidates ...*float64) *float64 {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
