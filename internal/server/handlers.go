package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/models"
)

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   common.GetVersion(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetFullVersion(),
	})
}

// handleStatus handles GET /api/status: per-provider priority, availability,
// and rate budget, plus the symbol index size.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"providers": s.service.ProviderStatus(),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.symbols != nil {
		status["symbols_indexed"] = s.symbols.Len()
	}
	WriteJSON(w, http.StatusOK, status)
}

// handleQuote handles GET /api/quote/{symbol}.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	quote := s.service.GetQuote(r.Context(), symbol)
	if quote == nil {
		WriteError(w, http.StatusNotFound, "No quote available for "+strings.ToUpper(symbol))
		return
	}

	WriteJSON(w, http.StatusOK, quote)
}

// handleHistory handles GET /api/history/{symbol}?period=1y.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	periodParam := r.URL.Query().Get("period")
	if periodParam == "" {
		periodParam = string(models.Period1Y)
	}
	period, err := models.ParsePeriod(periodParam)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	series := s.service.GetHistory(r.Context(), symbol, period)
	if series == nil {
		WriteError(w, http.StatusNotFound, "No history available for "+strings.ToUpper(symbol))
		return
	}

	WriteJSON(w, http.StatusOK, series)
}

// handleSearch handles GET /api/search?q=apple&limit=10.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		WriteError(w, http.StatusBadRequest, "Query must be at least 2 characters")
		return
	}

	limit := parseIntParam(r, "limit", 10)
	results := s.service.Search(r.Context(), query, limit)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// handleTrending handles GET /api/trending?count=10.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	count := parseIntParam(r, "count", 10)
	trending := s.service.GetTrending(r.Context(), count)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(trending),
		"trending": trending,
	})
}

// handleInvalidate handles POST /api/invalidate/{symbol}.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	s.service.Invalidate(symbol)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "invalidated",
		"symbol": strings.ToUpper(symbol),
	})
}

// parseIntParam reads a positive integer query parameter, falling back to
// def when absent or invalid.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return def
	}
	return value
}
