// Package news fetches crypto market headlines from configured RSS feeds.
// It is a read-only side feature of the gateway: failed sources are skipped,
// results are cached briefly, and summaries are stripped to plain text.
package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/zenzoro/zenzoro/internal/infra"
	"github.com/zenzoro/zenzoro/pkg/models"
)

// Source is one RSS feed.
type Source struct {
	Name string
	URL  string
}

// DefaultSources lists the crypto news feeds used when none are configured.
var DefaultSources = []Source{
	{Name: "CoinDesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/"},
	{Name: "CoinTelegraph", URL: "https://cointelegraph.com/rss"},
	{Name: "Decrypt", URL: "https://decrypt.co/feed"},
}

// Fetcher retrieves and caches headlines from a fixed set of feeds.
type Fetcher struct {
	sources []Source
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// New creates a fetcher over the given sources, or DefaultSources when
// sources is empty.
func New(sources []Source) *Fetcher {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	return &Fetcher{
		sources: sources,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
		parser:  gofeed.NewParser(),
	}
}

// Headlines returns up to limit recent articles across all sources, newest
// first. Sources are fetched concurrently; a failing source is skipped
// rather than failing the whole call. An error is returned only when every
// source failed.
func (f *Fetcher) Headlines(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	cacheKey := fmt.Sprintf("news:%d", limit)
	if cached, ok := f.cache.Get(cacheKey); ok {
		return cached.([]models.NewsArticle), nil
	}

	var (
		mu       sync.Mutex
		all      []models.NewsArticle
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range f.sources {
		src := src
		g.Go(func() error {
			articles, err := f.fetchFeed(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return nil // non-fatal, skip the source
			}
			all = append(all, articles...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if failures == len(f.sources) {
		return nil, fmt.Errorf("all %d news sources failed", failures)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt > all[j].PublishedAt
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	f.cache.Set(cacheKey, all)
	return all, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, src Source) ([]models.NewsArticle, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Source:  src.Name,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// cleanHTML reduces feed descriptions, which frequently embed markup, to
// trimmed plain text.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
