package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/pulsar/core/logger"
)

// MemoryRelay is an in-process Relay for single-instance deployments and
// tests. Delivery is synchronous and ordered per publisher.
type MemoryRelay struct {
	mu     sync.RWMutex
	subs   map[string]map[int]*memorySubscription
	nextID int
	closed bool

	logger *slog.Logger
}

// MemoryRelayOption configures a MemoryRelay.
type MemoryRelayOption func(*MemoryRelay)

// WithMemoryRelayLogger configures structured logging for the relay.
func WithMemoryRelayLogger(logger *slog.Logger) MemoryRelayOption {
	return func(r *MemoryRelay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewMemoryRelay creates an empty in-memory relay.
func NewMemoryRelay(opts ...MemoryRelayOption) *MemoryRelay {
	r := &MemoryRelay{
		subs:   make(map[string]map[int]*memorySubscription),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type memorySubscription struct {
	relay   *MemoryRelay
	channel string
	id      int
	handler Handler
}

func (s *memorySubscription) Close() error {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	if subs, ok := s.relay.subs[s.channel]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.relay.subs, s.channel)
		}
	}
	return nil
}

// Publish delivers the payload to every current subscriber of channel.
func (r *MemoryRelay) Publish(ctx context.Context, channel string, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false, ErrRelayClosed
	}
	targets := make([]*memorySubscription, 0, len(r.subs[channel]))
	for _, s := range r.subs[channel] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		r.dispatch(s, data)
	}
	return len(targets) > 0, nil
}

func (r *MemoryRelay) dispatch(s *memorySubscription, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("relay handler panicked",
				logger.Channel(s.channel),
				slog.Any("panic", rec))
		}
	}()
	s.handler(data)
}

// Subscribe registers a handler for channel. The error handler is never
// invoked: an in-process relay has no broker connection to lose.
func (r *MemoryRelay) Subscribe(ctx context.Context, channel string, onMessage Handler, onError ErrorHandler) (Subscription, error) {
	if onMessage == nil {
		return nil, ErrNilHandler
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRelayClosed
	}

	r.nextID++
	sub := &memorySubscription{relay: r, channel: channel, id: r.nextID, handler: onMessage}
	if r.subs[channel] == nil {
		r.subs[channel] = make(map[int]*memorySubscription)
	}
	r.subs[channel][sub.id] = sub
	return sub, nil
}

// Close drops all subscriptions and rejects further publishes.
func (r *MemoryRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRelayClosed
	}
	r.closed = true
	r.subs = make(map[string]map[int]*memorySubscription)
	return nil
}
