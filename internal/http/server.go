// Package http serves operational endpoints next to the extraction
// process: liveness, Prometheus metrics and cache statistics. It exposes
// no extraction API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskextract/internal/cache"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
)

// StatsSource reports pipeline state for /api/v1/stats.
type StatsSource interface {
	CacheStats() cache.Stats
	IntentCacheStats() cache.Stats
	Threshold() float64
}

// Config holds ops server configuration.
type Config struct {
	// Addr is host:port; an empty host listens on every interface.
	Addr string
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Version is reported by /healthz.
	Version string
}

// Server provides the ops endpoints.
type Server struct {
	echo    *echo.Echo
	stats   StatsSource
	logger  *logging.Logger
	config  Config
	started time.Time
}

// NewServer creates an ops server.
func NewServer(stats StatsSource, logger *logging.Logger, cfg Config) (*Server, error) {
	if stats == nil {
		return nil, errors.New("stats source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:9464"
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, fmt.Errorf("invalid addr %q: %w", cfg.Addr, err)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		stats:   stats,
		logger:  logger.Named("http"),
		config:  cfg,
		started: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/stats", s.handleStats)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// CacheStatsResponse mirrors cache.Stats.
type CacheStatsResponse struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Threshold       float64            `json:"threshold"`
	ExtractionCache CacheStatsResponse `json:"extraction_cache"`
	IntentCache     CacheStatsResponse `json:"intent_cache"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Threshold:       s.stats.Threshold(),
		ExtractionCache: toResponse(s.stats.CacheStats()),
		IntentCache:     toResponse(s.stats.IntentCacheStats()),
	})
}

func toResponse(st cache.Stats) CacheStatsResponse {
	return CacheStatsResponse{
		Hits:      st.Hits,
		Misses:    st.Misses,
		Evictions: st.Evictions,
		Size:      st.Size,
		Capacity:  st.Capacity,
	}
}

// Handler returns the server's handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.config.Addr }

// Start listens on the configured address and blocks until the server is
// shut down. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting ops server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down ops server")
	return s.echo.Shutdown(ctx)
}
