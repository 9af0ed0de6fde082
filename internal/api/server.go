// Package api exposes wallet persona analysis over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/persona-scanner/internal/config"
	"github.com/persona-scanner/internal/logging"
	"github.com/persona-scanner/internal/models"
	"github.com/persona-scanner/internal/types"
)

// WalletAnalyzerService is the analysis entry point the API depends on
type WalletAnalyzerService interface {
	AnalyzeWallet(ctx context.Context, address string) (*models.AnalysisResult, error)
}

// Server is the HTTP API server
type Server struct {
	analyzer WalletAnalyzerService
	chain    types.ChainID
	router   *mux.Router
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(analyzer WalletAnalyzerService, chain types.ChainID, cfg config.ServerConfig) *Server {
	s := &Server{
		analyzer: analyzer,
		chain:    chain,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second, // analyses can run long on cold wallets
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures the router and middleware chain
func (s *Server) setupRoutes() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// One analysis can cost dozens of upstream calls, so the v1 surface
	// gets a per-client budget
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(NewRateLimiter(1, 3).Middleware)
	v1.HandleFunc("/wallets/{address}/persona", s.handleAnalyzeWallet).Methods(http.MethodGet)
}

// Router returns the underlying router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	logging.WithField("addr", s.server.Addr).Info("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}
