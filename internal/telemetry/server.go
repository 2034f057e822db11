// Package telemetry serves the operational HTTP endpoints of a running
// language server: Prometheus metrics, a health probe and pprof profiles. The
// endpoints listen on their own address; the protocol itself stays on stdio.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Health is the body of the health probe
type Health struct {
	Status        string `json:"status"`
	Session       string `json:"session,omitempty"`
	OpenDocuments int    `json:"openDocuments"`
}

// Config holds telemetry server configuration
type Config struct {
	// Address is the listen address (e.g., "localhost:9464")
	Address string

	// Gatherer supplies the metrics served on /metrics
	Gatherer prometheus.Gatherer

	// Health reports the session state. Nil reports only the status.
	Health func() Health

	// Profiling mounts the pprof handlers under /debug/pprof
	Profiling bool

	// Logger receives request and server logs. Nil discards them.
	Logger *zap.Logger

	// ReadHeaderTimeout bounds how long a client may take to send headers
	ReadHeaderTimeout time.Duration
}

// Server is the telemetry HTTP server
type Server struct {
	httpServer *http.Server
	address    string
	listener   net.Listener
	logger     *zap.Logger
	done       chan struct{}
}

// New creates a telemetry server. It does not listen until Start.
func New(config Config) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("telemetry address cannot be empty")
	}
	if config.Gatherer == nil {
		return nil, fmt.Errorf("telemetry gatherer cannot be nil")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Handler:           NewRouter(config),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		address: config.Address,
		logger:  config.Logger,
		done:    make(chan struct{}),
	}, nil
}

// NewRouter builds the telemetry routes
func NewRouter(config Config) chi.Router {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(recovery(logger), requestLogging(logger))

	router.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger),
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := Health{Status: "ok"}
		if config.Health != nil {
			health = config.Health()
			health.Status = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("Failed to write health response", zap.Error(err))
		}
	})

	if config.Profiling {
		registerProfiling(router, "/debug/pprof")
	}

	return router
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("Telemetry server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Serving telemetry", zap.String("addr", s.Addr()))
	return nil
}

// Addr returns the server's network address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}
