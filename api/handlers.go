package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zenzoro/zenzoro/internal/gateway"
)

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Failed  []gateway.Failure `json:"failed,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	// Liveness of the gateway itself; never touches upstream.
	writeJSON(w, http.StatusOK, s.gw.Status())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	aliases, batch := queryAliases(r, "btc")

	result, err := s.gw.Overview(r.Context(), aliases)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	writeBatch(w, r, result, batch)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	aliases, batch := queryAliases(r, "")
	if len(aliases) == 0 {
		// No symbols requested: quote the configured watchlist.
		aliases, batch = s.cfg.Watch.Symbols, true
	}

	result, err := s.gw.Prices(r.Context(), aliases)
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	writeBatch(w, r, result, batch)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "symbol")

	result, err := s.gw.Prices(r.Context(), []string{alias})
	if err != nil {
		writeGatewayError(w, r, err)
		return
	}
	writeBatch(w, r, result, false)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	alias := r.URL.Query().Get("symbol")
	if alias == "" {
		alias = "btc"
	}

	daysParam := r.URL.Query().Get("days")
	if daysParam == "" {
		daysParam = "7"
	}
	days, err := strconv.Atoi(daysParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "days must be an integer")
		return
	}

	series, gwErr := s.gw.History(r.Context(), alias, days)
	if gwErr != nil {
		writeGatewayError(w, r, gwErr)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series})
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.gw.Assets()})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.News.Limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	articles, err := s.news.Headlines(r.Context(), limit)
	if err != nil {
		log.Printf("news fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "news sources unavailable")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: articles})
}

// queryAliases extracts requested aliases. "symbols" (comma-separated)
// selects batch shape; a lone "symbol" keeps the single-object shape.
func queryAliases(r *http.Request, fallback string) (aliases []string, batch bool) {
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				aliases = append(aliases, part)
			}
		}
		return aliases, true
	}
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		return []string{symbol}, false
	}
	if fallback == "" {
		return nil, true
	}
	return []string{fallback}, false
}

// writeBatch renders a batch result. In single mode a lone failure becomes a
// plain error response with the kind's status; in batch mode snapshots and
// per-alias failures travel together, never all-or-nothing.
func writeBatch(w http.ResponseWriter, r *http.Request, result *gateway.BatchResult, batch bool) {
	if !batch {
		if len(result.Snapshots) == 0 {
			if len(result.Failures) > 0 {
				f := result.Failures[0]
				writeError(w, statusForKind(f.Kind), f.Message)
				return
			}
			writeError(w, http.StatusNotFound, "no data")
			return
		}
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result.Snapshots[0]})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    result.Snapshots,
		Failed:  result.Failures,
	})
}

// statusForKind is the single place gateway error kinds map to HTTP status.
func statusForKind(kind gateway.Kind) int {
	switch kind {
	case gateway.KindInvalidParameter, gateway.KindUnknownAsset:
		return http.StatusBadRequest
	case gateway.KindAssetNotFound:
		return http.StatusNotFound
	case gateway.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case gateway.KindUpstreamTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeGatewayError renders a classified failure. Callers only ever see the
// sanitized message; the cause goes to the log.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	gwErr := gateway.Classify(err)
	if gwErr.Kind == gateway.KindInternal {
		log.Printf("internal error on %s %s: %v", r.Method, r.URL.Path, gwErr.Err)
	}
	writeError(w, statusForKind(gwErr.Kind), gwErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}
