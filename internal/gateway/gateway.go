// Package gateway relays stored notifications to channels outside the
// inbox: a Redis stream, Slack and Discord.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

// Relay delivers one notification to an external channel.
type Relay interface {
	Name() string
	Deliver(ctx context.Context, n *store.Notification) error
}

// FailureObserver counts relay failures. *observability.Metrics satisfies it.
type FailureObserver interface {
	RelayFailed(relay string)
}

// Gateway fans notifications out to every registered relay.
type Gateway struct {
	mu       sync.RWMutex
	relays   []Relay
	timeout  time.Duration
	observer FailureObserver
	inflight sync.WaitGroup
	closed   bool
	logger   *zap.Logger
}

// NewGateway creates a gateway giving each delivery up to timeout.
func NewGateway(timeout time.Duration, observer FailureObserver, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{timeout: timeout, observer: observer, logger: logger}
}

// Register adds a relay.
func (g *Gateway) Register(r Relay) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relays = append(g.relays, r)
	g.logger.Info("registered relay", zap.String("relay", r.Name()))
}

// Relays returns the registered relay names.
func (g *Gateway) Relays() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.relays))
	for _, r := range g.relays {
		names = append(names, r.Name())
	}
	return names
}

// Dispatch hands n to every relay in the background and returns at once.
// Failures are logged and counted, never returned.
func (g *Gateway) Dispatch(n *store.Notification) {
	if g == nil || n == nil {
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}
	for _, r := range g.relays {
		g.inflight.Add(1)
		go g.deliver(r, n)
	}
}

func (g *Gateway) deliver(r Relay, n *store.Notification) {
	defer g.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			g.fail(r.Name(), n, fmt.Errorf("panic: %v", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if err := r.Deliver(ctx, n); err != nil {
		g.fail(r.Name(), n, err)
		return
	}
	g.logger.Debug("relayed notification",
		zap.String("relay", r.Name()), zap.Int64("notification", n.ID))
}

func (g *Gateway) fail(relay string, n *store.Notification, err error) {
	if g.observer != nil {
		g.observer.RelayFailed(relay)
	}
	g.logger.Warn("relay delivery failed",
		zap.String("relay", relay), zap.Int64("notification", n.ID), zap.Error(err))
}

// Close stops accepting notifications and waits for in-flight deliveries.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	relays := g.relays
	g.mu.Unlock()

	g.inflight.Wait()

	for _, r := range relays {
		c, ok := r.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			g.logger.Error("relay close failed", zap.String("relay", r.Name()), zap.Error(err))
		}
	}
	return nil
}

// render is the plain-text form shared by the chat relays.
func render(n *store.Notification) string {
	text := n.Title
	if n.Message != "" {
		text += "\n" + n.Message
	}
	for _, l := range n.Links {
		text += fmt.Sprintf("\n%s: %s", l.Label, l.URL)
	}
	return text
}
