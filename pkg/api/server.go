// Package api exposes the tgcloud engine over HTTP: file listing, upload,
// download, rename, and delete, plus health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/engine"
)

// Config holds the HTTP server settings.
type Config struct {
	// Port is the listen port.
	Port int

	// ReadTimeout bounds request reading. Uploads stream multi-GiB bodies,
	// so this applies to headers only (see ReadHeaderTimeout below).
	ReadTimeout time.Duration

	// WriteTimeout bounds response writing. Zero means unbounded, which is
	// the right default for streaming download responses.
	WriteTimeout time.Duration

	// ShutdownTimeout is how long graceful shutdown waits for in-flight
	// requests. Default: 30s.
	ShutdownTimeout time.Duration
}

// Server is the tgcloud HTTP frontend.
type Server struct {
	server       *http.Server
	cfg          Config
	shutdownOnce sync.Once
}

// NewServer creates the HTTP frontend. reg may be nil to disable the
// /metrics endpoint.
func NewServer(cfg Config, eng *engine.Engine, reg *prometheus.Registry) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(eng, reg),
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return &Server{
		server: server,
		cfg:    cfg,
	}
}

// Start serves requests until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP frontend listening", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server. Safe to call more than once.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("HTTP frontend shutting down")
		err = s.server.Shutdown(ctx)
	})
	return err
}
