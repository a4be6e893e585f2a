package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/pulsar/core/logger"
)

const (
	// DefaultReapInterval is how often the reaper scans the registry.
	DefaultReapInterval = 30 * time.Second

	// DefaultMaxIdle is the staleness threshold beyond which a connection
	// is evicted.
	DefaultMaxIdle = 2 * time.Minute
)

// Reaper periodically evicts connections whose last activity exceeds the
// staleness threshold. Errors inside one pass are logged and never stop the
// loop; repeated failing passes stretch the interval with a capped backoff.
type Reaper struct {
	registry *Registry
	interval time.Duration
	maxIdle  time.Duration
	onEvict  func(*Connection)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithReapInterval sets the scan interval. Non-positive values keep the
// default.
func WithReapInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxIdle sets the staleness threshold. Non-positive values keep the
// default.
func WithMaxIdle(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.maxIdle = d
		}
	}
}

// WithOnEvict registers a callback invoked after a stale connection has been
// unregistered and closed.
func WithOnEvict(fn func(*Connection)) ReaperOption {
	return func(r *Reaper) {
		r.onEvict = fn
	}
}

// WithReaperLogger configures structured logging for the reaper.
func WithReaperLogger(logger *slog.Logger) ReaperOption {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReaper creates a reaper over the given registry. Call Start to run it.
func NewReaper(registry *Registry, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		registry: registry,
		interval: DefaultReapInterval,
		maxIdle:  DefaultMaxIdle,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the eviction loop until ctx is cancelled or Stop is called.
// It blocks; run it in a goroutine or under an errgroup.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrReaperAlreadyStarted
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	defer close(done)

	r.logger.Info("connection reaper started",
		slog.Duration("interval", r.interval),
		slog.Duration("max_idle", r.maxIdle))

	interval := r.interval
	failures := 0

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("connection reaper stopped")
			return ctx.Err()
		case <-timer.C:
			if evicted, err := r.sweep(); err != nil {
				failures++
				// Stretch the interval on consecutive failures, capped at
				// eight times the configured value.
				backoff := r.interval * time.Duration(1<<min(failures, 3))
				interval = backoff
				r.logger.Error("reaper sweep failed",
					logger.Error(err),
					logger.Count("consecutive_failures", failures),
					slog.Duration("next_in", interval))
			} else {
				failures = 0
				interval = r.interval
				if evicted > 0 {
					r.logger.Info("evicted stale connections",
						logger.Count("count", evicted))
				}
			}
			timer.Reset(interval)
		}
	}
}

// Stop cancels the loop and waits for the current pass to finish.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return ErrReaperNotStarted
	}
	cancel()
	<-done
	return nil
}

// sweep evicts every connection idle longer than maxIdle. A panic while
// closing one socket is contained to that connection.
func (r *Reaper) sweep() (evicted int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = newSweepPanicError(rec)
		}
	}()

	cutoff := time.Now().UTC().Add(-r.maxIdle)
	for _, c := range r.registry.All() {
		if c.LastActivity().After(cutoff) {
			continue
		}

		r.registry.Unregister(c)
		if cerr := c.Close(); cerr != nil {
			r.logger.Debug("closing stale connection failed",
				logger.ConnectionID(c.ID()),
				logger.Error(cerr))
		}
		r.logger.Debug("stale connection evicted",
			logger.ConnectionID(c.ID()),
			logger.UserID(c.UserID()),
			slog.Time("last_activity", c.LastActivity()))

		if r.onEvict != nil {
			r.onEvict(c)
		}
		evicted++
	}
	return evicted, nil
}
