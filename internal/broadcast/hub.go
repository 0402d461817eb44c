package broadcast

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/adapter/metrics"
)

// DefaultQueueSize is the per-subscriber queue capacity used when none is configured.
const DefaultQueueSize = 100

// Message is one encoded snapshot. Version is the store version it was read
// or replaced at; zero means unversioned and is never treated as stale.
type Message struct {
	Version uint64
	Data    []byte
}

// Subscription is one subscriber's handle into the Hub.
type Subscription struct {
	id     uuid.UUID
	queue  chan Message
	mu     sync.Mutex
	closed bool
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Messages returns the delivery queue. It is closed when the subscription ends.
func (s *Subscription) Messages() <-chan Message {
	return s.queue
}

// Deliver enqueues msg for this subscriber only. It never blocks: it reports false
// when the queue is full or the subscription has ended.
func (s *Subscription) Deliver(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.queue)
	return true
}

// PublishResult reports how one Publish call was distributed.
type PublishResult struct {
	Delivered int
	Dropped   int
}

// Hub delivers each published message to every subscription live at publish time.
// Messages are never replayed to later subscribers.
type Hub struct {
	mu        sync.RWMutex
	subs      map[uuid.UUID]*Subscription
	queueSize int
	metrics   *metrics.HubMetrics
}

// NewHub creates a hub whose subscriptions buffer up to queueSize messages.
// A non-positive queueSize falls back to DefaultQueueSize. hubMetrics may be nil.
func NewHub(queueSize int, hubMetrics *metrics.HubMetrics) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subs:      make(map[uuid.UUID]*Subscription),
		queueSize: queueSize,
		metrics:   hubMetrics,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:    uuid.New(),
		queue: make(chan Message, h.queueSize),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	total := len(h.subs)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	slog.Debug("Subscriber registered", "subscription_id", sub.id.String(), "total_subscribers", total)
	return sub
}

// Unsubscribe removes sub and closes its queue. Queued messages are discarded.
// Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, exists := h.subs[sub.id]
	delete(h.subs, sub.id)
	remaining := len(h.subs)
	h.mu.Unlock()

	if !sub.close() || !exists {
		return
	}

	if h.metrics != nil {
		h.metrics.Subscribers.Dec()
	}
	slog.Debug("Subscriber unregistered", "subscription_id", sub.id.String(), "remaining_subscribers", remaining)
}

// Publish offers msg to every live subscription. A subscriber whose queue is full
// misses this message; nobody else is affected and the caller is never blocked.
func (h *Hub) Publish(msg Message) PublishResult {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var result PublishResult
	for _, sub := range targets {
		if sub.Deliver(msg) {
			result.Delivered++
			continue
		}
		result.Dropped++
		slog.Debug("Dropped message for slow subscriber", "subscription_id", sub.id.String())
	}

	if h.metrics != nil {
		h.metrics.MessagesPublished.Inc()
		h.metrics.Deliveries.Add(float64(result.Delivered))
		h.metrics.DroppedMessages.Add(float64(result.Dropped))
	}
	return result
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Sessions observe their queue closing and shut down.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uuid.UUID]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.close() && h.metrics != nil {
			h.metrics.Subscribers.Dec()
		}
	}
	slog.Info("Hub closed", "disconnected_subscribers", len(subs))
}
