// Package feed serves a live roster over HTTP: the current snapshot as JSON,
// a websocket stream of roster deltas and, optionally, Prometheus metrics.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Message is one websocket frame. The first frame of a stream carries the
// snapshot; later frames carry deltas. Deltas with a generation at or below
// the snapshot's are already reflected in it.
type Message struct {
	Type     string                 `json:"type"`
	Snapshot *qlconsole.Snapshot    `json:"snapshot,omitempty"`
	Delta    *qlconsole.RosterDelta `json:"delta,omitempty"`
}

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeDelta    = "delta"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a logger for request errors.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Server exposes a projector and a hub over HTTP.
//
//	GET /roster   current snapshot as JSON
//	GET /deltas   websocket stream of Message frames
//	GET /metrics  Prometheus metrics (with WithGatherer)
//	GET /healthz  liveness
type Server struct {
	projector *qlconsole.Projector
	hub       *Hub
	log       *slog.Logger
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader
	router    *mux.Router
}

// New returns a server for p. hub must be one of p's sinks for /deltas to
// receive anything.
func New(p *qlconsole.Projector, hub *Hub, opts ...Option) *Server {
	s := &Server{
		projector: p,
		hub:       hub,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	router := mux.NewRouter()
	router.Path("/roster").Methods(http.MethodGet).HandlerFunc(s.handleRoster)
	router.Path("/deltas").Methods(http.MethodGet).HandlerFunc(s.handleDeltas)
	router.Path("/healthz").Methods(http.MethodGet).HandlerFunc(s.handleHealth)
	if s.gatherer != nil {
		router.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("unmatched request", "method", r.Method, "url", r.URL.String())
		w.WriteHeader(http.StatusNotFound)
	})
	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("feed listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	snap := s.projector.Current()
	body, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("could not serialize snapshot", "remote", r.RemoteAddr, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log.Debug("could not write snapshot", "remote", r.RemoteAddr, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeltas(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debug("could not upgrade websocket", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	// Subscribe first so no delta between the snapshot and the stream is lost.
	deltas, cancel := s.hub.Subscribe()
	defer cancel()

	snap := s.projector.Current()
	if err := s.write(conn, Message{Type: TypeSnapshot, Snapshot: &snap}); err != nil {
		return
	}

	// The client sends nothing; reading surfaces its close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case d, ok := <-deltas:
			if !ok {
				s.log.Debug("websocket subscriber dropped", "remote", r.RemoteAddr)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.write(conn, Message{Type: TypeDelta, Delta: &d}); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(m); err != nil {
		s.log.Debug("could not write websocket frame", "remote", conn.RemoteAddr().String(), "error", err)
		return err
	}
	return nil
}
