// Package api provides the HTTP REST API server for the Zenzoro gateway.
//
// It exposes the market-data endpoints (status, overview, prices, history),
// the supported-asset table, crypto headlines, WebSocket price ticks, and
// the embedded web frontend.
package api

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zenzoro/zenzoro/internal/config"
	"github.com/zenzoro/zenzoro/internal/gateway"
	"github.com/zenzoro/zenzoro/internal/news"
	"github.com/zenzoro/zenzoro/web"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	gw      *gateway.Service
	news    *news.Fetcher
	wsHub   *WSHub
	serveUI bool
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, gw *gateway.Service, newsFetcher *news.Fetcher) *Server {
	srv := &Server{
		cfg:     cfg,
		gw:      gw,
		news:    newsFetcher,
		wsHub:   NewWSHub(),
		serveUI: cfg.Server.ServeUI,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tickerCtx, stopTicker := context.WithCancel(context.Background())
	defer stopTicker()
	go s.wsHub.Run()
	go s.runPriceTicker(tickerCtx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
	log.Printf("listening on %s", addr)

	<-done
	log.Println("Shutting down server...")
	stopTicker()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.Server.CORSOrigins) > 0 {
		origins = s.cfg.Server.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/overview", s.handleOverview)
		r.Get("/prices", s.handlePrices)
		r.Get("/price/{symbol}", s.handlePrice)
		r.Get("/history", s.handleHistory)
		r.Get("/coins", s.handleCoins)
		r.Get("/news", s.handleNews)
		r.Get("/ws", s.handleWebSocket)
	})

	if s.serveUI {
		s.mountSPA(r, web.DistFS())
	}

	return r
}

// mountSPA serves the embedded frontend. Unknown paths fall back to
// index.html for client-side routing.
func (s *Server) mountSPA(r chi.Router, distFS fs.FS) {
	fileServer := http.FileServer(http.FS(distFS))

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rPath := strings.TrimPrefix(r.URL.Path, "/")
		if rPath == "" {
			rPath = "index.html"
		}

		f, err := distFS.Open(rPath)
		if err != nil {
			serveIndexHTML(w, distFS)
			return
		}
		f.Close()

		if rPath == "index.html" || strings.HasSuffix(rPath, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func serveIndexHTML(w http.ResponseWriter, distFS fs.FS) {
	data, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		http.Error(w, "web UI not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}
