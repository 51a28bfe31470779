// Package api exposes the MMU state to frontends: a JSON status
// endpoint, a websocket push stream and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusSource supplies the state published by the server.
type StatusSource interface {
	GetStatus() map[string]any
}

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":7125".
	Addr string

	// PushInterval is the websocket status broadcast period.
	PushInterval time.Duration
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":7125",
		PushInterval: time.Second,
	}
}

// Server publishes MMU status over HTTP and websocket.
type Server struct {
	cfg      Config
	source   StatusSource
	registry *prometheus.Registry
	log      zerolog.Logger

	upgrader   websocket.Upgrader
	clientsMu  sync.Mutex
	clients    map[*websocket.Conn]struct{}
	httpServer *http.Server
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// New creates a server publishing source's status. registry may be nil
// when no metrics endpoint is wanted.
func New(cfg Config, source StatusSource, registry *prometheus.Registry, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		source:   source,
		registry: registry,
		log:      log.With().Str("component", "api").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Handler returns the HTTP handler serving the status endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/websocket", s.handleWebsocket)
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go s.broadcastLoop()
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("API server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("API server stopped")
		}
	}()
	return nil
}

// Stop shuts the server down, closing all websocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.statusPayload())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client connected")

	// Initial snapshot, then the broadcast loop takes over.
	conn.WriteJSON(s.statusPayload())

	// Drain incoming frames so pings/closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		conn.Close()
	}
}

func (s *Server) broadcastLoop() {
	interval := s.cfg.PushInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		payload := s.statusPayload()
		s.clientsMu.Lock()
		conns := make([]*websocket.Conn, 0, len(s.clients))
		for conn := range s.clients {
			conns = append(conns, conn)
		}
		s.clientsMu.Unlock()

		for _, conn := range conns {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(payload); err != nil {
				s.dropClient(conn)
			}
		}
	}
}

func (s *Server) statusPayload() map[string]any {
	return map[string]any{
		"chamois":   s.source.GetStatus(),
		"timestamp": time.Now().Unix(),
	}
}
