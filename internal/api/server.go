// Package api exposes the derivation pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
	"github.com/recist-derivation-server/internal/middleware"
	"github.com/recist-derivation-server/internal/results"
	"github.com/recist-derivation-server/internal/service"
)

// RunRepository persists runs and reads run-level rows.
type RunRepository interface {
	Create(ctx context.Context, result *domain.RunResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DerivationRun, error)
	List(ctx context.Context, limit, offset int) ([]*domain.DerivationRun, error)
	GetMetrics(ctx context.Context, id uuid.UUID) (*domain.ResponseMetrics, error)
}

// ResponseRepository reads the derived response tables of stored runs.
type ResponseRepository interface {
	GetRecords(ctx context.Context, runID uuid.UUID) ([]domain.ResponseRecord, error)
	GetRecordsBySubject(ctx context.Context, runID uuid.UUID, subjectID string) ([]domain.ResponseRecord, error)
	GetBORs(ctx context.Context, runID uuid.UUID) ([]domain.BestOverallResponse, error)
}

// HealthChecker reports backing-store health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	router        *gin.Engine
	server        *http.Server
	log           *logrus.Logger

	deriver   *service.Deriver
	runs      RunRepository
	responses ResponseRepository
	store     results.Store
	health    HealthChecker
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	deriver *service.Deriver,
	runs RunRepository,
	responses ResponseRepository,
	store results.Store,
	health HealthChecker,
	logger *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())

	if cfg.Server.WriteTimeout > 0 {
		router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))
	}

	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		router.Use(limiter.Middleware())
	}

	server := &Server{
		configManager: configManager,
		router:        router,
		log:           logger,
		deriver:       deriver,
		runs:          runs,
		responses:     responses,
		store:         store,
		health:        health,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the configured handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/derivations", s.handleCreateDerivation)
		v1.GET("/derivations", s.handleListRuns)
		v1.GET("/derivations/:id", s.handleGetRun)
		v1.GET("/derivations/:id/records", s.handleGetRecords)
		v1.GET("/derivations/:id/records/:subject_id", s.handleGetSubjectRecords)
		v1.GET("/derivations/:id/bors", s.handleGetBORs)
		v1.GET("/derivations/:id/metrics", s.handleGetMetrics)
		v1.GET("/derivations/:id/errors", s.handleGetErrors)
		v1.GET("/derivations/:id/export", s.handleExportRun)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
