// Package coingecko implements the upstream CoinGecko v3 client: request
// shaping for the three supported call kinds, bounded timeouts, rate
// limiting, and error classification. It carries no business logic; response
// normalization lives in normalize.go and orchestration in the gateway.
//
// Docs: https://docs.coingecko.com/reference/introduction
// Free tier limit: ~30 requests/minute.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zenzoro/zenzoro/internal/infra"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 8 * time.Second

	// apiKeyHeader authenticates demo-tier keys.
	// https://docs.coingecko.com/reference/authentication
	apiKeyHeader = "x-cg-demo-api-key"

	maxErrBody = 512
)

// AllowedDays is the supported set of history day ranges. Values outside it
// fail validation before any request is built.
var AllowedDays = []int{1, 7, 30, 90, 365}

// InvalidDaysError reports a day range outside AllowedDays.
type InvalidDaysError struct {
	Days int
}

func (e *InvalidDaysError) Error() string {
	return fmt.Sprintf("unsupported day range %d (allowed: %s)", e.Days, allowedDaysList())
}

// ValidateDays checks days against the allow-list.
func ValidateDays(days int) error {
	for _, d := range AllowedDays {
		if d == days {
			return nil
		}
	}
	return &InvalidDaysError{Days: days}
}

func allowedDaysList() string {
	parts := make([]string, len(AllowedDays))
	for i, d := range AllowedDays {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}

// Client is the CoinGecko API client. It is stateless between calls apart
// from configuration and is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *infra.RateLimiter
	retry   bool
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets a demo-tier API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-call timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = infra.NewHTTPClient(d) }
}

// WithRateLimit replaces the default request rate of n per window.
func WithRateLimit(n int, window time.Duration) Option {
	return func(c *Client) { c.limiter = infra.NewRateLimiter(n, window) }
}

// WithRetry enables a single bounded retry on 5xx and timeout failures.
func WithRetry(enabled bool) Option {
	return func(c *Client) { c.retry = enabled }
}

// New creates a client with defaults suitable for the free tier.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    infra.NewHTTPClient(defaultTimeout),
		limiter: infra.NewRateLimiter(30, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SimplePrice fetches USD price, 24h change, market cap, and 24h volume for
// all requested ids in one batched call.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (SimplePriceResponse, error) {
	q := url.Values{}
	q.Set("ids", joinIDs(ids))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")

	var resp SimplePriceResponse
	if err := c.getJSON(ctx, "/simple/price", q, &resp); err != nil {
		return nil, fmt.Errorf("simple price: %w", err)
	}
	return resp, nil
}

// Markets fetches the richer per-asset overview (name, image, rank,
// high/low) for all requested ids in one call.
func (c *Client) Markets(ctx context.Context, ids []string) ([]Market, error) {
	q := url.Values{}
	q.Set("ids", joinIDs(ids))
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(max(len(ids), 1)))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	q.Set("price_change_percentage", "24h")

	var resp []Market
	if err := c.getJSON(ctx, "/coins/markets", q, &resp); err != nil {
		return nil, fmt.Errorf("markets: %w", err)
	}
	return resp, nil
}

// MarketChart fetches the USD price time series for one id over the given
// day range. days must pass ValidateDays.
func (c *Client) MarketChart(ctx context.Context, id string, days int) (*MarketChart, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))

	var resp MarketChart
	path := "/coins/" + url.PathEscape(id) + "/market_chart"
	if err := c.getJSON(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("market chart %s: %w", id, err)
	}
	return &resp, nil
}

// Ping verifies upstream connectivity.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		GeckoSays string `json:"gecko_says"`
	}
	if err := c.getJSON(ctx, "/ping", nil, &resp); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// getJSON performs one rate-limited GET, classifying failures per errors.go.
// With retry enabled, a 5xx or timeout is retried once after a short backoff.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dest any) error {
	err := c.doJSON(ctx, path, q, dest)
	if err == nil || !c.retry || !retriable(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(500 * time.Millisecond):
	}
	return c.doJSON(ctx, path, q, dest)
}

func (c *Client) doJSON(ctx context.Context, path string, q url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[apiKeyHeader] = c.apiKey
	}

	body, status, err := infra.DoGet(ctx, c.http, u, headers)
	if err != nil {
		return classifyTransport(err)
	}
	defer body.Close()

	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &HTTPError{StatusCode: status, Body: infra.ReadBodyLimited(body, maxErrBody)}
	}

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// joinIDs builds the comma-separated ids parameter in stable order.
func joinIDs(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
