package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/metrics"
	"github.com/forta-classifier/internal/middleware"
	"github.com/forta-classifier/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	evaluator     *service.Evaluator
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	router        *gin.Engine
	server        *http.Server
	startedAt     time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics enables request metrics and serves gatherer on the configured metrics path.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, evaluator *service.Evaluator, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment; tests pin their own mode
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		evaluator:     evaluator,
		router:        gin.New(),
		startedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware(cfg)
	server.setupRoutes(cfg)

	return server
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
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
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupMiddleware(cfg *domain.Config) {
	s.router.Use(middleware.CorrelationID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.AuditLogger(s.logger))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(middleware.RateLimit(middleware.NewLimiter(cfg.RateLimit)))
	s.router.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(cfg *domain.Config) {
	s.router.GET("/health", s.handleHealth)

	if s.gatherer != nil && cfg.Metrics.Enabled {
		s.router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/reference", s.handleReference)
		v1.POST("/evaluate", s.handleEvaluate)
		v1.POST("/comorbidities", s.handleComorbidities)
	}
}
