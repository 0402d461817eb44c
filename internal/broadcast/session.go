package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SnapshotReader is the read side of the score store. The version must grow
// with every replace so sessions can discard snapshots that arrive late.
type SnapshotReader interface {
	ReadVersion() (*domain.ScoreSnapshot, uint64, bool)
}

// maxInboundMessage bounds client frames; viewers only ever send sync requests.
const maxInboundMessage = 512

// SessionConfig controls the keep-alive behaviour of a session.
// A zero PingInterval disables pings and the read deadline.
type SessionConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

// DefaultSessionConfig pings every 30s and drops peers silent for 60s.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    5 * time.Second,
	}
}

// Session bridges one viewer WebSocket to the Hub.
type Session struct {
	conn    *websocket.Conn
	hub     *Hub
	store   SnapshotReader
	clock   clockwork.Clock
	config  SessionConfig
	metrics *metrics.WebSocketMetrics
	logger  *slog.Logger

	sub      *Subscription
	done     chan struct{}
	stopOnce sync.Once
}

// NewSession prepares a session for conn. wsMetrics may be nil.
func NewSession(conn *websocket.Conn, hub *Hub, store SnapshotReader, clock clockwork.Clock, config SessionConfig, wsMetrics *metrics.WebSocketMetrics) *Session {
	return &Session{
		conn:    conn,
		hub:     hub,
		store:   store,
		clock:   clock,
		config:  config,
		metrics: wsMetrics,
		done:    make(chan struct{}),
	}
}

// Run subscribes to the hub and pumps messages until the peer goes away, a write
// fails, the hub closes the subscription or ctx is cancelled. The connection is
// closed and the subscription released before Run returns. The returned error is
// informational only; it never affects other sessions.
func (s *Session) Run(ctx context.Context) error {
	s.sub = s.hub.Subscribe()
	defer s.hub.Unsubscribe(s.sub)

	s.logger = slog.With("subscription_id", s.sub.ID().String())
	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	s.conn.SetReadLimit(maxInboundMessage)
	s.configureReadDeadline()
	s.syncCurrent()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.stop()
		return s.writePump(gctx)
	})
	g.Go(func() error {
		defer s.stop()
		return s.readPump()
	})

	err := g.Wait()
	s.logger.Debug("Session ended", "error", err)
	return err
}

// stop signals both pumps and closes the connection, which unblocks a pending read.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) writePump(ctx context.Context) error {
	var pings <-chan time.Time
	if s.config.PingInterval > 0 {
		ticker := s.clock.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		pings = ticker.Chan()
	}

	// highest version written so far; a sync read can be overtaken by a newer publish
	var lastVersion uint64

	for {
		select {
		case msg, ok := <-s.sub.Messages():
			if !ok {
				s.writeClose(websocket.CloseGoingAway, "subscription ended")
				return nil
			}
			if msg.Version != 0 && msg.Version < lastVersion {
				s.logger.Debug("Skipping stale snapshot", "version", msg.Version, "last_version", lastVersion)
				continue
			}
			lastVersion = max(lastVersion, msg.Version)
			start := s.clock.Now()
			if err := s.write(websocket.TextMessage, msg.Data); err != nil {
				return s.pumpError("write message", err)
			}
			if s.metrics != nil {
				s.metrics.MessageSendSeconds.Observe(s.clock.Since(start).Seconds())
			}
		case <-pings:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				if s.metrics != nil {
					s.metrics.PingFailures.Inc()
				}
				return s.pumpError("write ping", err)
			}
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "server shutting down")
			return nil
		case <-s.done:
			return nil
		}
	}
}

func (s *Session) readPump() error {
	for {
		messageType, _, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return s.pumpError("read message", err)
		}

		s.extendReadDeadline()
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			if s.metrics != nil {
				s.metrics.SyncRequests.Inc()
			}
			s.syncCurrent()
		}
	}
}

// syncCurrent queues the stored snapshot for this viewer only.
func (s *Session) syncCurrent() {
	snapshot, version, ok := s.store.ReadVersion()
	if !ok {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("Failed to marshal score snapshot", "error", err)
		return
	}
	if !s.sub.Deliver(Message{Version: version, Data: data}) {
		s.logger.Debug("Sync dropped, queue full or closed")
	}
}

func (s *Session) write(messageType int, data []byte) error {
	if s.config.WriteWait > 0 {
		_ = s.conn.SetWriteDeadline(s.clock.Now().Add(s.config.WriteWait))
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (s *Session) writeClose(code int, reason string) {
	var deadline time.Time
	if s.config.WriteWait > 0 {
		deadline = s.clock.Now().Add(s.config.WriteWait)
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (s *Session) configureReadDeadline() {
	if s.config.PingInterval <= 0 || s.config.PongWait <= 0 {
		return
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
}

func (s *Session) extendReadDeadline() {
	if s.config.PingInterval <= 0 || s.config.PongWait <= 0 {
		return
	}
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(s.config.PongWait))
}

// pumpError hides errors caused by the sibling pump closing the connection.
func (s *Session) pumpError(op string, err error) error {
	if s.stopped() || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
