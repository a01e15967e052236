package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/velesbot/veles/internal/observability"
	"github.com/velesbot/veles/pkg/events"
	"github.com/velesbot/veles/pkg/session"
)

// Server exposes the run coordinator over HTTP: message ingress, stop
// requests, history reads and a websocket event stream.
type Server struct {
	host         string
	port         int
	sharedSecret string

	dispatcher Dispatcher
	store      *session.Store
	hub        *events.Hub

	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	inFlight sync.WaitGroup

	mu           sync.RWMutex
	shuttingDown bool
	addr         string
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	Dispatcher   Dispatcher
	Store        *session.Store
	Hub          *events.Hub
	Logger       zerolog.Logger
}

// NewServer creates a gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}

	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		dispatcher:   cfg.Dispatcher,
		store:        cfg.Store,
		hub:          cfg.Hub,
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Start begins serving. It returns once the listener is bound.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.requireAuth(s.track(s.handleEnqueue)))
	mux.HandleFunc("POST /v1/sessions/{channel}/{chatID}/stop", s.requireAuth(s.track(s.handleStop)))
	mux.HandleFunc("GET /v1/sessions/{channel}/{chatID}/history", s.requireAuth(s.track(s.handleHistory)))
	mux.HandleFunc("GET /v1/events", s.requireAuth(s.handleEvents))
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to bind gateway listener: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("Gateway server started")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, closing with requests in flight")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown gateway: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// track counts a request as in flight and rejects new work during shutdown.
func (s *Server) track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		down := s.shuttingDown
		s.mu.RUnlock()
		if down {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "shutting down"})
			return
		}

		s.inFlight.Add(1)
		defer s.inFlight.Done()
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
