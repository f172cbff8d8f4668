// Package gateway orchestrates the market-data pipeline: alias resolution,
// upstream fetching, and normalization, with a short-TTL response cache and
// request coalescing in front of the upstream client. Each operation is
// stateless request/response; failure at any stage short-circuits the rest
// and surfaces as one classified Error.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zenzoro/zenzoro/internal/coingecko"
	"github.com/zenzoro/zenzoro/internal/infra"
	"github.com/zenzoro/zenzoro/internal/symbols"
	"github.com/zenzoro/zenzoro/pkg/models"
)

// Upstream is the provider surface the service depends on. *coingecko.Client
// satisfies it; tests substitute doubles.
type Upstream interface {
	SimplePrice(ctx context.Context, ids []string) (coingecko.SimplePriceResponse, error)
	Markets(ctx context.Context, ids []string) ([]coingecko.Market, error)
	MarketChart(ctx context.Context, id string, days int) (*coingecko.MarketChart, error)
	Ping(ctx context.Context) error
}

// Service is the market-data gateway. Construct with New; safe for
// concurrent use.
type Service struct {
	name     string
	table    *symbols.Table
	upstream Upstream
	cache    infra.ByteStore
	cacheTTL time.Duration
	sf       singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the short-TTL response cache. Identical in-flight
// fetches are coalesced regardless.
func WithCache(store infra.ByteStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

// WithServiceName sets the name reported by Status.
func WithServiceName(name string) Option {
	return func(s *Service) { s.name = name }
}

// New creates a gateway service over the given symbol table and upstream.
func New(table *symbols.Table, upstream Upstream, opts ...Option) *Service {
	s := &Service{
		name:     "Zenzoro Backend",
		table:    table,
		upstream: upstream,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status is the health payload. Producing it performs no upstream call.
type Status struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Time    string `json:"time"`
}

// Status reports liveness of the gateway itself.
func (s *Service) Status() Status {
	return Status{
		Status:  "ok",
		Service: s.name,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Ping checks upstream connectivity. Used by the CLI status command, never
// by Status.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.upstream.Ping(ctx); err != nil {
		return ClassifyUpstream(err)
	}
	return nil
}

// Assets lists the supported asset table.
func (s *Service) Assets() []symbols.Asset {
	return s.table.Assets()
}

// Failure is one per-alias failure inside an otherwise successful batch.
type Failure struct {
	Alias   string `json:"symbol"`
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
}

// BatchResult carries the snapshots that succeeded plus per-alias failures.
// A batch never discards the whole result because one alias failed.
type BatchResult struct {
	Snapshots []models.MarketSnapshot
	Failures  []Failure
}

// Overview returns rich snapshots (name, image, rank, high/low) for the
// given aliases via one batched markets call.
func (s *Service) Overview(ctx context.Context, aliases []string) (*BatchResult, error) {
	return s.batch(ctx, aliases, "markets", func(ctx context.Context, assets []symbols.Asset) (map[string]models.MarketSnapshot, error) {
		raw, err := fetchShared(ctx, s, cacheKey("markets", assetIDs(assets)...), func(ctx context.Context) ([]coingecko.Market, error) {
			return s.upstream.Markets(ctx, assetIDs(assets))
		})
		if err != nil {
			return nil, err
		}
		return coingecko.NormalizeMarkets(raw), nil
	})
}

// Prices returns lean snapshots (price, change, cap, volume) for the given
// aliases via one batched simple-price call.
func (s *Service) Prices(ctx context.Context, aliases []string) (*BatchResult, error) {
	return s.batch(ctx, aliases, "simple", func(ctx context.Context, assets []symbols.Asset) (map[string]models.MarketSnapshot, error) {
		raw, err := fetchShared(ctx, s, cacheKey("simple", assetIDs(assets)...), func(ctx context.Context) (coingecko.SimplePriceResponse, error) {
			return s.upstream.SimplePrice(ctx, assetIDs(assets))
		})
		if err != nil {
			return nil, err
		}
		return coingecko.NormalizeSimplePrice(raw, assets), nil
	})
}

// batch runs the shared resolve → fetch → normalize pipeline for both
// snapshot operations. Per-alias resolution failures and per-asset missing
// upstream data become Failures; only a whole-call upstream error aborts.
func (s *Service) batch(ctx context.Context, aliases []string, kind string, fetch func(context.Context, []symbols.Asset) (map[string]models.MarketSnapshot, error)) (*BatchResult, error) {
	assets, misses := s.table.ResolveMany(aliases)

	result := &BatchResult{}
	for _, m := range misses {
		e := Classify(m.Err)
		result.Failures = append(result.Failures, Failure{Alias: m.Alias, Kind: e.Kind, Message: e.Message})
	}
	if len(assets) == 0 {
		return result, nil
	}

	snapshots, err := fetch(ctx, assets)
	if err != nil {
		return nil, ClassifyUpstream(err)
	}

	for _, asset := range assets {
		snap, ok := snapshots[asset.ID]
		if !ok {
			result.Failures = append(result.Failures, Failure{
				Alias:   asset.Symbol,
				Kind:    KindAssetNotFound,
				Message: "no upstream data for " + asset.ID,
			})
			continue
		}
		result.Snapshots = append(result.Snapshots, snap)
	}
	return result, nil
}

// History returns the price series for one alias over the given day range.
func (s *Service) History(ctx context.Context, alias string, days int) (*models.HistorySeries, error) {
	if err := coingecko.ValidateDays(days); err != nil {
		return nil, Classify(err)
	}

	asset, err := s.table.Resolve(alias)
	if err != nil {
		return nil, Classify(err)
	}

	raw, err := fetchShared(ctx, s, cacheKey("chart", asset.ID, strconv.Itoa(days)), func(ctx context.Context) (*coingecko.MarketChart, error) {
		return s.upstream.MarketChart(ctx, asset.ID, days)
	})
	if err != nil {
		return nil, ClassifyUpstream(err)
	}

	points, dropped := coingecko.NormalizeMarketChart(raw)
	if dropped > 0 {
		log.Printf("history %s days=%d: dropped %d malformed chart entries", asset.ID, days, dropped)
	}

	return &models.HistorySeries{Symbol: asset.Symbol, Days: days, Points: points}, nil
}

// fetchShared coalesces identical concurrent fetches and serves the
// short-TTL cache when one is configured. The cache is best-effort: a decode
// failure there just falls through to a fresh fetch.
func fetchShared[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache != nil {
		if b, ok := s.cache.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(b, &v); err == nil {
				return v, nil
			}
		}
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		res, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if b, err := json.Marshal(res); err == nil {
				s.cache.Set(ctx, key, b, s.cacheTTL)
			}
		}
		return res, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func assetIDs(assets []symbols.Asset) []string {
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

func cacheKey(kind string, parts ...string) string {
	key := kind
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
