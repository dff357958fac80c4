// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/service"
	"github.com/etf-dashboard/internal/types"
)

// Service interfaces for dependency injection and testing

// DashboardServiceInterface defines the refresh cycle operations
type DashboardServiceInterface interface {
	Refresh(ctx context.Context, rangeStr string) (*service.Dashboard, error)
	Portfolio(ctx context.Context) (*service.PortfolioView, error)
	Stats() *service.ServiceStats
}

// LedgerServiceInterface defines the holdings ledger operations
type LedgerServiceInterface interface {
	Instruments() []string
	Load(ctx context.Context) (*types.Portfolio, error)
	Update(ctx context.Context, instrument string, shares float64) (*types.Portfolio, error)
	Reset(ctx context.Context) (*types.Portfolio, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	dashboardService DashboardServiceInterface
	ledgerService    LedgerServiceInterface
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int // Per client
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, dashboardService DashboardServiceInterface, ledgerService LedgerServiceInterface) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		dashboardService: dashboardService,
		ledgerService:    ledgerService,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Order matters: the request ID logger must exist before anything logs
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/instruments", s.handleListInstruments).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/dashboard", s.handleGetDashboard).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/portfolio", s.handleGetPortfolio).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/portfolio", s.handleResetPortfolio).Methods(http.MethodDelete)
	api.HandleFunc("/portfolio/holdings", s.handleGetHoldings).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/portfolio/holdings/{instrument}", s.handleUpdateHolding).Methods(http.MethodPut, http.MethodOptions)
}

// Handler returns the router with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "etf-dashboard",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
