// Zenzoro — crypto market data gateway
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenzoro/zenzoro/api"
	"github.com/zenzoro/zenzoro/internal/coingecko"
	"github.com/zenzoro/zenzoro/internal/config"
	"github.com/zenzoro/zenzoro/internal/gateway"
	"github.com/zenzoro/zenzoro/internal/infra"
	"github.com/zenzoro/zenzoro/internal/news"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zenzoro",
	Short: "Zenzoro — crypto market data gateway",
	Long: `Zenzoro is a gateway for cryptocurrency market data.
It resolves ticker aliases to canonical asset ids, quotes spot prices and
market overviews, serves historical price series, and exposes everything
over an HTTP API with an embedded dashboard and a WebSocket price ticker.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(coinsCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildGateway wires the upstream client, cache backend, and symbol table
// into a gateway service. The returned cleanup closes the cache backend.
func buildGateway(ctx context.Context) (*gateway.Service, func(), error) {
	clientOpts := []coingecko.Option{
		coingecko.WithTimeout(cfg.Upstream.Timeout()),
		coingecko.WithRateLimit(cfg.Upstream.RateLimitPerMin, time.Minute),
		coingecko.WithRetry(cfg.Upstream.Retry),
	}
	if cfg.Upstream.BaseURL != "" {
		clientOpts = append(clientOpts, coingecko.WithBaseURL(cfg.Upstream.BaseURL))
	}
	if cfg.Upstream.APIKey != "" {
		clientOpts = append(clientOpts, coingecko.WithAPIKey(cfg.Upstream.APIKey))
	}
	client := coingecko.New(clientOpts...)

	opts := []gateway.Option{}
	cleanup := func() {}

	switch cfg.Cache.Backend {
	case "redis":
		store, err := infra.NewRedisStore(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, gateway.WithCache(store, cfg.Cache.TTL()))
		cleanup = func() { _ = store.Close() }
	case "off":
		// No response cache
	default:
		opts = append(opts, gateway.WithCache(infra.NewMemoryStore(cfg.Cache.TTL()), cfg.Cache.TTL()))
	}

	return gateway.New(cfg.SymbolTable(), client, opts...), cleanup, nil
}

func newsSources() []news.Source {
	sources := make([]news.Source, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		sources = append(sources, news.Source{Name: f.Name, URL: f.URL})
	}
	return sources
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Zenzoro %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gw, cleanup, err := buildGateway(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := api.NewServer(cfg, gw, news.New(newsSources()))
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("🌐 Starting Zenzoro API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Price Command ---

var priceCmd = &cobra.Command{
	Use:   "price [symbol...]",
	Short: "Quote spot prices for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		gw, cleanup, err := buildGateway(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := gw.Prices(ctx, args)
		if err != nil {
			return err
		}

		for _, snap := range result.Snapshots {
			price := "n/a"
			change := ""
			if snap.Price != nil {
				price = fmt.Sprintf("$%.2f", *snap.Price)
			}
			if snap.Change24h != nil {
				change = fmt.Sprintf("  %+.2f%% (24h)", *snap.Change24h)
			}
			fmt.Printf("%-6s %-12s %s%s\n", snap.Symbol, price, snap.Name, change)
		}
		for _, f := range result.Failures {
			fmt.Fprintf(os.Stderr, "⚠️  %s: %s\n", f.Alias, f.Message)
		}
		if len(result.Snapshots) == 0 && len(result.Failures) > 0 {
			return fmt.Errorf("no symbols could be quoted")
		}
		return nil
	},
}

// --- History Command ---

var historyCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "Fetch a historical price series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		gw, cleanup, err := buildGateway(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		series, err := gw.History(ctx, args[0], days)
		if err != nil {
			return err
		}

		fmt.Printf("%s — %d days, %d points\n", series.Symbol, series.Days, len(series.Points))
		for _, p := range series.Points {
			ts := time.UnixMilli(p.Timestamp).UTC()
			fmt.Printf("  %s  $%.2f\n", ts.Format("2006-01-02 15:04"), p.Price)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("days", 7, "history window in days (1, 7, 30, 90, or 365)")
}

// --- Coins Command ---

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "List supported assets and their aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := cfg.SymbolTable()
		for _, asset := range table.Assets() {
			fmt.Printf("%-16s %-6s %-14s aliases: %s\n",
				asset.ID, strings.ToUpper(asset.Symbol), asset.Name, strings.Join(asset.Aliases, ", "))
		}
		return nil
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway configuration and upstream reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  Zenzoro — Gateway Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Printf("  API Server:  %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Upstream:    %s\n", cfg.Upstream.BaseURL)
		fmt.Printf("  Cache:       %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL())
		fmt.Printf("  Watchlist:   %s every %s\n", strings.Join(cfg.Watch.Symbols, ", "), cfg.Watch.Interval())
		fmt.Println()

		gw, cleanup, err := buildGateway(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := gw.Ping(ctx); err != nil {
			fmt.Printf("  Upstream reachability: ❌ %v\n", err)
		} else {
			fmt.Println("  Upstream reachability: ✅ ok")
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
