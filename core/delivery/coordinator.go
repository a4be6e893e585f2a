package delivery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/registry"
	"github.com/dmitrymomot/pulsar/core/relay"
	"github.com/dmitrymomot/pulsar/core/replay"
)

const (
	// DefaultReplayMaxAge bounds how far back reconnect replay reaches.
	DefaultReplayMaxAge = time.Hour

	// DefaultReplayLimit caps how many envelopes are replayed per
	// reconnect.
	DefaultReplayLimit = 50

	// DefaultResubscribeBase is the initial backoff after a relay
	// subscription dies.
	DefaultResubscribeBase = time.Second

	// DefaultResubscribeMax caps the resubscription backoff.
	DefaultResubscribeMax = 30 * time.Second
)

// SnapshotSource builds the authoritative aggregate state pushed as a
// full_sync envelope after replay. It is an external domain collaborator.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (map[string]any, error)
}

// Message is the producer-facing input to SendToUser and Broadcast: a type
// tag plus the payload to validate against it.
type Message struct {
	Type    envelope.Type
	Payload any
}

// PersistPolicy decides, per message type, whether a broadcast is written to
// the replay queue.
type PersistPolicy func(t envelope.Type) bool

// Coordinator wires the registry, replay store, and relay together. Store,
// relay, and snapshot source are all optional: a nil store disables
// durability, a nil relay short-circuits to single-process delivery, and a
// nil snapshot source skips the full_sync push.
type Coordinator struct {
	registry  *registry.Registry
	store     replay.Store
	relay     relay.Relay
	snapshots SnapshotSource

	instanceID      string
	replayMaxAge    time.Duration
	replayLimit     int
	resubBase       time.Duration
	resubMax        time.Duration
	persistOnBroadc PersistPolicy
	logger          *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	subs    map[string]relay.Subscription // keyed by relay channel
	wg      sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore attaches the replay queue used for write-through persistence.
func WithStore(store replay.Store) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithRelay attaches the cross-process pub/sub relay.
func WithRelay(r relay.Relay) Option {
	return func(c *Coordinator) { c.relay = r }
}

// WithSnapshotSource attaches the domain collaborator that builds full_sync
// snapshots.
func WithSnapshotSource(s SnapshotSource) Option {
	return func(c *Coordinator) { c.snapshots = s }
}

// WithReplayWindow tunes reconnect replay: entries older than maxAge are
// skipped, and at most limit entries are replayed.
func WithReplayWindow(maxAge time.Duration, limit int) Option {
	return func(c *Coordinator) {
		if maxAge > 0 {
			c.replayMaxAge = maxAge
		}
		if limit > 0 {
			c.replayLimit = limit
		}
	}
}

// WithResubscribeBackoff tunes the relay resubscription backoff.
func WithResubscribeBackoff(base, max time.Duration) Option {
	return func(c *Coordinator) {
		if base > 0 {
			c.resubBase = base
		}
		if max > 0 {
			c.resubMax = max
		}
	}
}

// WithPersistPolicy overrides the per-type persistence decision applied to
// broadcasts. The default persists everything except transient control
// traffic.
func WithPersistPolicy(p PersistPolicy) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.persistOnBroadc = p
		}
	}
}

// WithLogger configures structured logging for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a coordinator over the given registry.
func New(reg *registry.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:        reg,
		instanceID:      uuid.New().String(),
		replayMaxAge:    DefaultReplayMaxAge,
		replayLimit:     DefaultReplayLimit,
		resubBase:       DefaultResubscribeBase,
		resubMax:        DefaultResubscribeMax,
		persistOnBroadc: func(t envelope.Type) bool { return !t.Transient() },
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:            make(map[string]relay.Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstanceID identifies this process on the relay; relayed frames carrying
// it are echoes of our own publishes and are skipped.
func (c *Coordinator) InstanceID() string { return c.instanceID }

// Start subscribes to the broadcast relay channel. It returns immediately;
// listen loops run in the background until Close or ctx cancellation. With a
// nil relay Start only arms the lifecycle.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	ctx = c.ctx
	c.mu.Unlock()

	if c.relay == nil {
		return nil
	}

	return c.subscribe(ctx, relay.BroadcastChannel)
}

// Close tears down relay subscriptions and closes every live connection.
// In-flight sends finish; new sends fail with ErrCoordinatorClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	c.closed = true
	cancel := c.cancel
	subs := c.subs
	c.subs = make(map[string]relay.Subscription)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		_ = sub.Close()
	}
	c.wg.Wait()

	c.registry.CloseAll()
	c.logger.Info("delivery coordinator closed")
	return nil
}

// Stats reports current registry occupancy.
func (c *Coordinator) Stats() registry.Stats {
	return c.registry.Stats()
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
