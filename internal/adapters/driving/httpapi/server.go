// Package httpapi exposes the campus services over HTTP with echo: the chat
// and retrieval endpoints used by the website, the mutation webhook called
// by the CMS, operator endpoints for sync status and reindexing, and the
// health and metrics endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
)

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("httpapi: chat, retrieval, sync and publisher services are required")

// maxBodySize bounds request bodies.
const maxBodySize = "64K"

// SettingsProvider returns the live retrieval settings.
type SettingsProvider interface {
	Get() domain.RetrievalSettings
}

// Services aggregates the driving ports served over HTTP.
type Services struct {
	Chat      driving.ChatService
	Retrieval driving.RetrievalService
	Sync      driving.SyncCoordinator
	Publisher driving.MutationPublisher
	Settings  SettingsProvider
	Kinds     *domain.KindRegistry
	Metrics   *metrics.Metrics

	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Config holds the server settings.
type Config struct {
	Address            string
	ChatTimeout        time.Duration
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	svc     Services
	echo    *echo.Echo
	limiter *ClientLimiter

	// background bounds reindex sweeps started by requests.
	background context.Context
	cancel     context.CancelFunc
}

// New builds the server and its routes.
func New(cfg Config, svc Services) (*Server, error) {
	if svc.Chat == nil || svc.Retrieval == nil || svc.Sync == nil || svc.Publisher == nil || svc.Settings == nil {
		return nil, ErrMissingService
	}

	background, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		svc:        svc,
		echo:       echo.New(),
		limiter:    NewClientLimiter(cfg.RateLimitPerMinute),
		background: background,
		cancel:     cancel,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodySize))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if svc.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api/v1")
	api.POST("/chat", s.chat, s.rateLimit, s.timeout)
	api.POST("/retrieve", s.retrieve, s.timeout)
	api.POST("/mutations", s.mutation)
	api.GET("/sync/:kind/:id", s.syncStatus)
	api.POST("/reindex", s.reindex)

	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening on %s", s.cfg.Address)
		errCh <- s.echo.Start(s.cfg.Address)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("http: shutting down")
	s.cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// timeout bounds the request context with the chat timeout. The context is
// also cancelled when the client disconnects.
func (s *Server) timeout(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.ChatTimeout <= 0 {
			return next(c)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.ChatTimeout)
		defer cancel()
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// rateLimit rejects clients over the per-minute chat budget.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ok, retryAfter := s.limiter.Allow(c.RealIP()); !ok {
			s.svc.Metrics.RateLimited()
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds()+0.999)))
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many chat requests, please wait a moment")
		}
		return next(c)
	}
}
