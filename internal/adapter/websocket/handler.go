// Package websocket upgrades viewer connections and hands them to a
// broadcast session.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/broadcast"
)

// Handler serves GET /ws. Each upgraded connection runs a broadcast.Session
// on the request goroutine until the viewer leaves or Shutdown is called.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *broadcast.Hub
	store    broadcast.SnapshotReader
	clock    clockwork.Clock
	config   broadcast.SessionConfig
	limits   *ConnectionLimits
	metrics  *metrics.WebSocketMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewHandler creates the upgrade handler. limits and wsMetrics may be nil.
func NewHandler(hub *broadcast.Hub, store broadcast.SnapshotReader, clock clockwork.Clock, config broadcast.SessionConfig, checkOrigin func(*http.Request) bool, limits *ConnectionLimits, wsMetrics *metrics.WebSocketMetrics) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		hub:     hub,
		store:   store,
		clock:   clock,
		config:  config,
		limits:  limits,
		metrics: wsMetrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	if h.limits != nil {
		ip := clientIP(r)
		if reason, ok := h.limits.Acquire(ip); !ok {
			if h.metrics != nil {
				h.metrics.ConnectionsRefused.WithLabelValues(string(reason)).Inc()
			}
			slog.WarnContext(r.Context(), "WebSocket connection refused", "remote_ip", ip, "reason", reason)
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
		defer h.limits.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.DebugContext(r.Context(), "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	session := broadcast.NewSession(conn, h.hub, h.store, h.clock, h.config, h.metrics)
	_ = session.Run(h.ctx)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// track registers a session unless the handler is draining.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// Shutdown ends every running session with a going-away close frame and
// waits for them to finish or ctx to expire. New upgrades are refused.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket sessions still running: %w", ctx.Err())
	}
}
