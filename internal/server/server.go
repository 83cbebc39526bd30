// Package server exposes the aggregation engine over a REST API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/interfaces"
)

// Server wraps the HTTP server and the market-data service.
type Server struct {
	service   interfaces.MarketDataService
	symbols   interfaces.SymbolIndex
	config    *common.Config
	logger    *common.Logger
	server    *http.Server
	startTime time.Time
}

// NewServer creates the REST API server. The symbol index is optional and
// only feeds the status endpoint.
func NewServer(config *common.Config, service interfaces.MarketDataService, symbols interfaces.SymbolIndex, logger *common.Logger) *Server {
	s := &Server{
		service:   service,
		symbols:   symbols,
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}

	router := mux.NewRouter()
	s.registerRoutes(router)

	handler := applyMiddleware(router, logger)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// registerRoutes sets up all REST API routes.
func (s *Server) registerRoutes(router *mux.Router) {
	// System
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/version", s.handleVersion).Methods(http.MethodGet)
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)

	// Market data
	router.HandleFunc("/api/quote/{symbol}", s.handleQuote).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{symbol}", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	router.HandleFunc("/api/trending", s.handleTrending).Methods(http.MethodGet)
	router.HandleFunc("/api/invalidate/{symbol}", s.handleInvalidate).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}
