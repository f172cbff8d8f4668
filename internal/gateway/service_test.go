package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zenzoro/zenzoro/internal/coingecko"
	"github.com/zenzoro/zenzoro/internal/infra"
	"github.com/zenzoro/zenzoro/internal/symbols"
)

func f(v float64) *float64 { return &v }

// fakeUpstream is a test double counting every upstream call.
type fakeUpstream struct {
	mu          sync.Mutex
	calls       atomic.Int32
	simple      coingecko.SimplePriceResponse
	markets     []coingecko.Market
	chart       *coingecko.MarketChart
	err         error
	lastIDs     []string
	blockUntil  chan struct{} // when set, calls block until closed
}

func (u *fakeUpstream) record(ids []string) {
	u.calls.Add(1)
	u.mu.Lock()
	u.lastIDs = ids
	u.mu.Unlock()
	if u.blockUntil != nil {
		<-u.blockUntil
	}
}

func (u *fakeUpstream) SimplePrice(_ context.Context, ids []string) (coingecko.SimplePriceResponse, error) {
	u.record(ids)
	return u.simple, u.err
}

func (u *fakeUpstream) Markets(_ context.Context, ids []string) ([]coingecko.Market, error) {
	u.record(ids)
	return u.markets, u.err
}

func (u *fakeUpstream) MarketChart(_ context.Context, id string, days int) (*coingecko.MarketChart, error) {
	u.record([]string{id})
	return u.chart, u.err
}

func (u *fakeUpstream) Ping(context.Context) error {
	u.calls.Add(1)
	return u.err
}

func newService(u Upstream, opts ...Option) *Service {
	return New(symbols.NewDefaultTable(), u, opts...)
}

func TestStatusMakesNoUpstreamCall(t *testing.T) {
	up := &fakeUpstream{}
	svc := newService(up)

	st := svc.Status()
	if st.Status != "ok" || st.Service == "" || st.Time == "" {
		t.Errorf("Status() = %+v", st)
	}
	if _, err := time.Parse(time.RFC3339, st.Time); err != nil {
		t.Errorf("Time not RFC3339: %v", err)
	}
	if got := up.calls.Load(); got != 0 {
		t.Errorf("status performed %d upstream calls, want 0", got)
	}
}

func TestPricesSingleAsset(t *testing.T) {
	up := &fakeUpstream{simple: coingecko.SimplePriceResponse{
		"ethereum": {USD: f(3000), USDChange24h: f(-2.5)},
	}}
	svc := newService(up)

	res, err := svc.Prices(context.Background(), []string{"eth"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(res.Snapshots) != 1 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v", res)
	}
	snap := res.Snapshots[0]
	if snap.Symbol != "ETH" || *snap.Price != 3000 || *snap.Change24h != -2.5 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.MarketCap != nil || snap.Volume24h != nil {
		t.Error("absent upstream fields must stay nil")
	}
}

func TestOverviewBatchPartialFailure(t *testing.T) {
	up := &fakeUpstream{markets: []coingecko.Market{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: f(64000)},
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: f(3000)},
	}}
	svc := newService(up)

	res, err := svc.Overview(context.Background(), []string{"btc", "doesnotexist", "eth"})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(res.Snapshots) != 2 {
		t.Fatalf("snapshots = %+v, want 2", res.Snapshots)
	}
	if res.Snapshots[0].ID != "bitcoin" || res.Snapshots[1].ID != "ethereum" {
		t.Errorf("order not preserved: %s, %s", res.Snapshots[0].ID, res.Snapshots[1].ID)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %+v, want 1", res.Failures)
	}
	fail := res.Failures[0]
	if fail.Alias != "doesnotexist" || fail.Kind != KindUnknownAsset {
		t.Errorf("failure = %+v", fail)
	}
	if got := up.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 batched call", got)
	}
	up.mu.Lock()
	ids := up.lastIDs
	up.mu.Unlock()
	if len(ids) != 2 || ids[0] != "bitcoin" || ids[1] != "ethereum" {
		t.Errorf("upstream ids = %v", ids)
	}
}

func TestOverviewAssetMissingUpstream(t *testing.T) {
	// Resolver knows both, upstream returns only one.
	up := &fakeUpstream{markets: []coingecko.Market{
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: f(64000)},
	}}
	svc := newService(up)

	res, err := svc.Overview(context.Background(), []string{"btc", "doge"})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(res.Snapshots) != 1 || res.Snapshots[0].ID != "bitcoin" {
		t.Fatalf("snapshots = %+v", res.Snapshots)
	}
	if len(res.Failures) != 1 || res.Failures[0].Kind != KindAssetNotFound {
		t.Fatalf("failures = %+v, want one asset_not_found", res.Failures)
	}
}

func TestAllAliasesUnknown(t *testing.T) {
	up := &fakeUpstream{}
	svc := newService(up)

	res, err := svc.Prices(context.Background(), []string{"nope", "alsono"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(res.Snapshots) != 0 || len(res.Failures) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if up.calls.Load() != 0 {
		t.Error("no upstream call should happen when nothing resolves")
	}
}

func TestHistory(t *testing.T) {
	up := &fakeUpstream{chart: &coingecko.MarketChart{Prices: rawPairs(
		"[1700000000000, 100.0]",
		"[1700000060000, 101.0]",
	)}}
	svc := newService(up)

	series, err := svc.History(context.Background(), "BTC", 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if series.Symbol != "BTC" || series.Days != 7 || len(series.Points) != 2 {
		t.Errorf("series = %+v", series)
	}
}

func TestHistoryInvalidDays(t *testing.T) {
	up := &fakeUpstream{}
	svc := newService(up)

	_, err := svc.History(context.Background(), "btc", 42)
	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.Kind != KindInvalidParameter {
		t.Fatalf("err = %v, want invalid_parameter", err)
	}
	if up.calls.Load() != 0 {
		t.Error("invalid days must not reach upstream")
	}
}

func TestHistoryUnknownAlias(t *testing.T) {
	svc := newService(&fakeUpstream{})

	_, err := svc.History(context.Background(), "doesnotexist", 7)
	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.Kind != KindUnknownAsset {
		t.Fatalf("err = %v, want unknown_asset", err)
	}
}

func TestUpstreamErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout", coingecko.ErrTimeout, KindUpstreamTimeout},
		{"not found", coingecko.ErrNotFound, KindAssetNotFound},
		{"rate limited", coingecko.ErrRateLimited, KindUpstreamUnavailable},
		{"http 500", &coingecko.HTTPError{StatusCode: 500}, KindUpstreamUnavailable},
		{"plain failure", errors.New("connection refused"), KindUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(&fakeUpstream{err: tc.err})
			_, err := svc.History(context.Background(), "btc", 7)
			var gwErr *Error
			if !errors.As(err, &gwErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if gwErr.Kind != tc.want {
				t.Errorf("kind = %s, want %s", gwErr.Kind, tc.want)
			}
		})
	}
}

func TestCacheAvoidsSecondFetch(t *testing.T) {
	up := &fakeUpstream{simple: coingecko.SimplePriceResponse{
		"bitcoin": {USD: f(64000)},
	}}
	svc := newService(up, WithCache(infra.NewMemoryStore(time.Minute), time.Minute))

	for i := 0; i < 3; i++ {
		res, err := svc.Prices(context.Background(), []string{"btc"})
		if err != nil {
			t.Fatalf("Prices #%d: %v", i, err)
		}
		if len(res.Snapshots) != 1 || *res.Snapshots[0].Price != 64000 {
			t.Fatalf("Prices #%d = %+v", i, res)
		}
	}
	if got := up.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (cached after first)", got)
	}
}

func TestConcurrentIdenticalFetchesCoalesce(t *testing.T) {
	up := &fakeUpstream{
		simple:     coingecko.SimplePriceResponse{"bitcoin": {USD: f(64000)}},
		blockUntil: make(chan struct{}),
	}
	svc := newService(up)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Prices(context.Background(), []string{"btc"})
		}(i)
	}

	// Let the goroutines pile up on the in-flight call, then release it.
	time.Sleep(50 * time.Millisecond)
	close(up.blockUntil)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Prices #%d: %v", i, err)
		}
	}
	if got := up.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 coalesced call", got)
	}
}

func rawPairs(entries ...string) []json.RawMessage {
	raw := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		raw[i] = json.RawMessage(e)
	}
	return raw
}
