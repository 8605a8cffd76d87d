// Package http serves the download API, health checks and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"scgrab/internal/core"
	"scgrab/internal/flood"
)

const shutdownTimeout = 10 * time.Second

// Downloader runs one track download. core.Downloader implements it.
type Downloader interface {
	DownloadTrack(ctx context.Context, sourceURL string, overrides []core.Field) (*core.Result, error)
}

// RateLimiter decides whether a client may start another download. flood.Floodgate implements it.
type RateLimiter interface {
	Allow(clientID string) flood.Decision
}

type Server struct {
	config     *core.ServerConfig
	logger     *zap.Logger
	server     *http.Server
	metrics    *Metrics
	downloader Downloader
	limiter    RateLimiter
	ready      atomic.Bool
}

// NewServer wires the routes. limiter may be nil to disable rate limiting.
func NewServer(
	config *core.ServerConfig,
	downloader Downloader,
	limiter RateLimiter,
	metrics *Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:     config,
		logger:     logger,
		metrics:    metrics,
		downloader: downloader,
		limiter:    limiter,
	}
	s.server = createHTTPServer(config, withRequestID(s.setupRoutes()))
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/download", s.downloadHandler)
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/", homeHandler(s.logger))

	return mux
}

// Handler returns the root handler, including request ID middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.ready.Store(false)
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	s.ready.Store(true)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		s.ready.Store(false)
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}
