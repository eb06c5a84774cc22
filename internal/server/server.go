// Package server exposes health, metrics and scheduler status over HTTP while the
// crawler runs in scheduled mode.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// Default timeouts.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	Address         string
	ServiceName     string
	Version         string
	Debug           bool
	ShutdownTimeout time.Duration
}

// StatusFunc reports the scheduler state.
type StatusFunc func() any

// Server is the status HTTP server.
type Server struct {
	router *gin.Engine
	http   *http.Server
	log    logger.Logger
	cfg    Config
}

// New builds the router. registry may be nil, in which case /metrics is not served.
func New(cfg Config, log logger.Logger, registry *prometheus.Registry, status StatusFunc, checks map[string]HealthChecker) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	log = log.With(logger.Component("http"))

	router := gin.New()
	router.Use(RecoveryMiddleware(log), LoggerMiddleware(log))

	health := healthHandler(cfg.ServiceName, cfg.Version, time.Now(), checks)
	router.GET("/health", health)
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}
	if status != nil {
		router.GET("/status", func(c *gin.Context) { c.JSON(http.StatusOK, status()) })
	}

	return &Server{
		router: router,
		http: &http.Server{
			Addr:         cfg.Address,
			Handler:      router,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		log: log,
		cfg: cfg,
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", logger.String("address", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
