package coingecko

import "encoding/json"

// SimplePriceResponse is the raw shape of /simple/price: a map keyed by
// canonical asset id. Ids the provider does not know are simply absent.
type SimplePriceResponse map[string]SimplePriceEntry

// SimplePriceEntry holds the USD fields of one /simple/price entry. All
// fields are optional upstream; absent values stay nil.
type SimplePriceEntry struct {
	USD          *float64 `json:"usd"`
	USDChange24h *float64 `json:"usd_24h_change"`
	USDMarketCap *float64 `json:"usd_market_cap"`
	USDVolume24h *float64 `json:"usd_24h_vol"`
}

// Market is one element of the raw /coins/markets response. The provider has
// shipped several field spellings for price and volume over time, so the
// synonyms are all declared here and reconciled during normalization.
type Market struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	MarketCapRank int    `json:"market_cap_rank"`

	CurrentPrice *float64 `json:"current_price"`
	Price        *float64 `json:"price"`
	Last         *float64 `json:"last"`

	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	MarketCap         *float64 `json:"market_cap"`

	TotalVolume *float64 `json:"total_volume"`
	Volume24h   *float64 `json:"volume_24h"`

	High24h *float64 `json:"high_24h"`
	Low24h  *float64 `json:"low_24h"`
}

// MarketChart is the raw shape of /coins/{id}/market_chart. Each price entry
// should be a [timestampMillis, price] pair, but entries are kept raw here so
// malformed ones can be dropped individually instead of failing the decode.
type MarketChart struct {
	Prices []json.RawMessage `json:"prices"`
}
