package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/ledger-reconciler/internal/api/handlers"
	"github.com/eshaffer321/ledger-reconciler/internal/api/middleware"
	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// RunDefaults fill the fields a reconcile request omits
	RunDefaults reconcile.Options

	// Metrics is served at MetricsPath when set
	Metrics     http.Handler
	MetricsPath string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8085,
		AllowedOrigins: middleware.DefaultAllowedOrigins,
		RunDefaults:    reconcile.DefaultOptions(),
		MetricsPath:    "/metrics",
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	runner     handlers.Runner
}

// NewServer creates a new API server.
// If runner is nil, POST /api/reconcile is not available.
func NewServer(cfg Config, repo storage.Repository, runner handlers.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		config: cfg,
		router: gin.New(),
		logger: logger,
		repo:   repo,
		runner: runner,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))
	s.router.Use(middleware.Logging(s.logger, "/health", s.config.MetricsPath))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	s.router.GET("/health", handlers.NewHealthHandler().Get)

	if s.config.Metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.config.Metrics))
	}

	api := s.router.Group("/api")

	if s.runner != nil {
		reconcileHandler := handlers.NewReconcileHandler(s.runner, s.config.RunDefaults, s.logger)
		api.POST("/reconcile", reconcileHandler.Run)
	}

	runsHandler := handlers.NewRunsHandler(s.repo)
	api.GET("/runs", runsHandler.List)
	api.GET("/runs/:id", runsHandler.Get)
	api.GET("/runs/:id/matches", runsHandler.Matches)

	recordsHandler := handlers.NewRecordsHandler(s.repo)
	api.GET("/records/:source/:id", recordsHandler.Get)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Runs are synchronous; leave room for a full pass over the store
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
