package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zenzoro/zenzoro/internal/coingecko"
	"github.com/zenzoro/zenzoro/internal/config"
	"github.com/zenzoro/zenzoro/internal/gateway"
	"github.com/zenzoro/zenzoro/internal/news"
	"github.com/zenzoro/zenzoro/internal/symbols"
)

type stubUpstream struct {
	simpleErr error
	chartErr  error
}

func f64(v float64) *float64 { return &v }

func (u *stubUpstream) SimplePrice(ctx context.Context, ids []string) (coingecko.SimplePriceResponse, error) {
	if u.simpleErr != nil {
		return nil, u.simpleErr
	}
	known := map[string]coingecko.SimplePriceEntry{
		"bitcoin":  {USD: f64(65000), USDChange24h: f64(1.2), USDMarketCap: f64(1.28e12), USDVolume24h: f64(3.1e10)},
		"ethereum": {USD: f64(3000), USDChange24h: f64(-2.5)},
	}
	resp := coingecko.SimplePriceResponse{}
	for _, id := range ids {
		if entry, ok := known[id]; ok {
			resp[id] = entry
		}
	}
	return resp, nil
}

func (u *stubUpstream) Markets(ctx context.Context, ids []string) ([]coingecko.Market, error) {
	markets := make([]coingecko.Market, 0, len(ids))
	for _, id := range ids {
		switch id {
		case "bitcoin":
			markets = append(markets, coingecko.Market{
				ID: "bitcoin", Symbol: "btc", Name: "Bitcoin",
				CurrentPrice: f64(65000), PriceChangePct24h: f64(1.2),
				MarketCap: f64(1.28e12), TotalVolume: f64(3.1e10), MarketCapRank: 1,
			})
		case "ethereum":
			markets = append(markets, coingecko.Market{
				ID: "ethereum", Symbol: "eth", Name: "Ethereum",
				CurrentPrice: f64(3000), PriceChangePct24h: f64(-2.5), MarketCapRank: 2,
			})
		}
	}
	return markets, nil
}

func (u *stubUpstream) MarketChart(ctx context.Context, id string, days int) (*coingecko.MarketChart, error) {
	if u.chartErr != nil {
		return nil, u.chartErr
	}
	prices := make([]json.RawMessage, 0, 3)
	for i := 0; i < 3; i++ {
		pair := fmt.Sprintf("[%d, %d.0]", 1700000000000+int64(i)*3600000, 64000+i*100)
		prices = append(prices, json.RawMessage(pair))
	}
	return &coingecko.MarketChart{Prices: prices}, nil
}

func (u *stubUpstream) Ping(ctx context.Context) error { return nil }

func testServer(t *testing.T, upstream gateway.Upstream) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.ServeUI = false
	cfg.News.Limit = 20
	cfg.Watch.Symbols = []string{"btc", "eth"}
	cfg.Watch.IntervalSec = 15

	gw := gateway.New(symbols.NewDefaultTable(), upstream)
	return NewServer(cfg, gw, news.New(nil))
}

func doGet(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("GET %s: invalid JSON body %q: %v", path, rec.Body.String(), err)
	}
	return rec, resp
}

func TestStatusEndpoint(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	for _, path := range []string{"/api/status", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want 200", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if body["status"] != "ok" {
			t.Errorf("GET %s: status field = %q, want ok", path, body["status"])
		}
		if body["service"] == "" || body["time"] == "" {
			t.Errorf("GET %s: missing service or time: %v", path, body)
		}
	}
}

func TestSinglePrice(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/price/BTC")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}

	snap, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want single object", resp.Data)
	}
	if snap["symbol"] != "BTC" {
		t.Errorf("symbol = %v, want BTC", snap["symbol"])
	}
	if snap["price"] != 65000.0 {
		t.Errorf("price = %v, want 65000", snap["price"])
	}
}

func TestSinglePriceUnknownSymbol(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/price/notacoin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Success {
		t.Error("success = true for unknown symbol")
	}
	if !strings.Contains(resp.Error, "notacoin") {
		t.Errorf("error %q should name the rejected symbol", resp.Error)
	}
}

func TestBatchPricesPartialSuccess(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/prices?symbols=btc,notacoin,eth")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for partial batch", rec.Code)
	}
	if !resp.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}

	list, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data is %T, want array", resp.Data)
	}
	if len(list) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(list))
	}
	if len(resp.Failed) != 1 {
		t.Fatalf("got %d failures, want 1", len(resp.Failed))
	}
	if resp.Failed[0].Alias != "notacoin" || resp.Failed[0].Kind != gateway.KindUnknownAsset {
		t.Errorf("failure = %+v, want notacoin/unknown_asset", resp.Failed[0])
	}
}

func TestPricesDefaultsToWatchlist(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/prices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	list, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data is %T, want array", resp.Data)
	}
	if len(list) != 2 {
		t.Errorf("got %d snapshots, want 2 from watchlist", len(list))
	}
}

func TestOverviewDefaultsToSingleBitcoin(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	snap, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want single object", resp.Data)
	}
	if snap["id"] != "bitcoin" {
		t.Errorf("id = %v, want bitcoin", snap["id"])
	}
	if snap["rank"] != 1.0 {
		t.Errorf("rank = %v, want 1", snap["rank"])
	}
}

func TestHistory(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/history?symbol=btc&days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	series, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", resp.Data)
	}
	if series["symbol"] != "BTC" {
		t.Errorf("symbol = %v, want BTC", series["symbol"])
	}
	points, ok := series["points"].([]interface{})
	if !ok || len(points) != 3 {
		t.Fatalf("points = %v, want 3 pairs", series["points"])
	}
	first, ok := points[0].([]interface{})
	if !ok || len(first) != 2 {
		t.Fatalf("point shape = %v, want [timestamp, price]", points[0])
	}
}

func TestHistoryRejectsBadDays(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	cases := []struct {
		path string
		want int
	}{
		{"/api/history?symbol=btc&days=99", http.StatusBadRequest},
		{"/api/history?symbol=btc&days=abc", http.StatusBadRequest},
		{"/api/history?symbol=notacoin&days=7", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec, resp := doGet(t, srv, tc.path)
		if rec.Code != tc.want {
			t.Errorf("GET %s: status = %d, want %d", tc.path, rec.Code, tc.want)
		}
		if resp.Success {
			t.Errorf("GET %s: success = true", tc.path)
		}
		if resp.Error == "" {
			t.Errorf("GET %s: empty error message", tc.path)
		}
	}
}

func TestUpstreamErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", fmt.Errorf("get: %w", coingecko.ErrTimeout), http.StatusServiceUnavailable},
		{"rate limited", fmt.Errorf("get: %w", coingecko.ErrRateLimited), http.StatusBadGateway},
		{"server error", &coingecko.HTTPError{StatusCode: 500}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := testServer(t, &stubUpstream{simpleErr: tc.err})
			rec, resp := doGet(t, srv, "/api/price/btc")
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if resp.Success {
				t.Error("success = true on upstream failure")
			}
		})
	}
}

func TestCoins(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, resp := doGet(t, srv, "/api/coins")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	list, ok := resp.Data.([]interface{})
	if !ok || len(list) == 0 {
		t.Fatalf("data = %v, want non-empty asset list", resp.Data)
	}
}

func TestNewsRejectsBadLimit(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	rec, _ := doGet(t, srv, "/api/news?limit=-3")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownAPIRouteIs404WithoutUI(t *testing.T) {
	srv := testServer(t, &stubUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
