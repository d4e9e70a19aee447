// Package notify fans new notifications out to live inbox clients over
// Server-Sent Events and WebSockets.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

// Observer receives fanout counters. *observability.Metrics satisfies it.
type Observer interface {
	Broadcast(delivered, dropped int)
	SetSubscribers(n int)
}

// Subscriber is one live client. C yields serialised notifications and is
// closed on Unsubscribe.
type Subscriber struct {
	ID string
	C  <-chan []byte

	ch     chan []byte
	closed bool
}

// Hub holds the live subscriber set.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscriber
	buffer    int
	keepAlive time.Duration
	observer  Observer
	logger    *zap.Logger
}

// NewHub creates a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int, keepAlive time.Duration, observer Observer, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 100
	}
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Hub{
		subs:      make(map[string]*Subscriber),
		buffer:    buffer,
		keepAlive: keepAlive,
		observer:  observer,
		logger:    logger,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	ch := make(chan []byte, h.buffer)
	sub := &Subscriber{ID: uuid.New().String(), C: ch, ch: ch}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.setSubscribers(n)
	h.logger.Debug("subscriber added", zap.String("subscriber", sub.ID), zap.Int("count", n))
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if sub.closed {
		h.mu.Unlock()
		return
	}
	sub.closed = true
	delete(h.subs, sub.ID)
	close(sub.ch)
	n := len(h.subs)
	h.mu.Unlock()

	h.setSubscribers(n)
	h.logger.Debug("subscriber removed", zap.String("subscriber", sub.ID), zap.Int("count", n))
}

// Broadcast serialises n once and offers it to every subscriber without
// blocking. Subscribers with a full buffer miss the message.
func (h *Hub) Broadcast(n *store.Notification) (int, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return 0, fmt.Errorf("encode notification: %w", err)
	}

	delivered, dropped := 0, 0
	h.mu.RLock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if h.observer != nil {
		h.observer.Broadcast(delivered, dropped)
	}
	if dropped > 0 {
		h.logger.Warn("subscribers missed notification",
			zap.Int64("notification", n.ID), zap.Int("dropped", dropped))
	}
	return delivered, nil
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) setSubscribers(n int) {
	if h.observer != nil {
		h.observer.SetSubscribers(n)
	}
}
