package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// ScoresChannel is the pub/sub channel carrying accepted snapshots.
const ScoresChannel = "scores:updated"

type envelope struct {
	Origin   uuid.UUID             `json:"origin"`
	Snapshot *domain.ScoreSnapshot `json:"snapshot"`
}

// ApplyFunc installs a snapshot received from another instance.
type ApplyFunc func(*domain.ScoreSnapshot) error

// Relay publishes locally accepted snapshots and applies snapshots accepted
// by other instances. Each relay has its own origin id and ignores its own
// messages.
type Relay struct {
	rdb     *goredis.Client
	origin  uuid.UUID
	metrics *metrics.RedisMetrics
}

var _ domain.ScoreRelay = (*Relay)(nil)

// NewRelay creates a relay on rdb. m may be nil.
func NewRelay(rdb *goredis.Client, m *metrics.RedisMetrics) *Relay {
	return &Relay{rdb: rdb, origin: uuid.New(), metrics: m}
}

func (r *Relay) Origin() uuid.UUID {
	return r.origin
}

func (r *Relay) PublishScores(ctx context.Context, snapshot *domain.ScoreSnapshot) error {
	data, err := json.Marshal(envelope{Origin: r.origin, Snapshot: snapshot})
	if err != nil {
		r.count("out", "error")
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}

	if err := r.rdb.Publish(ctx, ScoresChannel, data).Err(); err != nil {
		r.count("out", "error")
		return fmt.Errorf("failed to publish scores: %w", err)
	}

	r.count("out", "ok")
	return nil
}

// Listener is a confirmed subscription to ScoresChannel.
type Listener struct {
	relay  *Relay
	pubsub *goredis.PubSub
}

// Subscribe subscribes to ScoresChannel and waits for the server to confirm,
// so that every message published after it returns is received.
func (r *Relay) Subscribe(ctx context.Context) (*Listener, error) {
	pubsub := r.rdb.Subscribe(ctx, ScoresChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", ScoresChannel, err)
	}
	return &Listener{relay: r, pubsub: pubsub}, nil
}

// Run applies remote snapshots until ctx is done, then closes the
// subscription.
func (l *Listener) Run(ctx context.Context, apply ApplyFunc) {
	defer func() { _ = l.pubsub.Close() }()

	ch := l.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.relay.handle(msg.Payload, apply)
		case <-ctx.Done():
			return
		}
	}
}

// Start subscribes and runs the listener in the background.
func (r *Relay) Start(ctx context.Context, apply ApplyFunc) error {
	l, err := r.Subscribe(ctx)
	if err != nil {
		return err
	}
	go l.Run(ctx, apply)
	return nil
}

func (r *Relay) handle(payload string, apply ApplyFunc) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Snapshot == nil {
		r.count("in", "invalid")
		slog.Warn("Dropping malformed relay message", "error", err)
		return
	}

	if env.Origin == r.origin {
		r.count("in", "skipped")
		return
	}

	if err := apply(env.Snapshot); err != nil {
		r.count("in", "invalid")
		slog.Warn("Rejected relayed snapshot", "origin", env.Origin, "error", err)
		return
	}

	r.count("in", "ok")
	slog.Debug("Applied relayed snapshot", "origin", env.Origin, "phase", env.Snapshot.Phase)
}

func (r *Relay) count(direction, result string) {
	if r.metrics != nil {
		r.metrics.RelayMessages.WithLabelValues(direction, result).Inc()
	}
}
