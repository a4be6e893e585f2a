package replay

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/pulsar/core/envelope"
)

type memoryRecord struct {
	env      envelope.Envelope
	storedAt time.Time
}

// MemoryStore is an in-process replay queue with the same bounds semantics
// as RedisStore. Suitable for tests and single-instance deployments.
type MemoryStore struct {
	mu         sync.Mutex
	queues     map[string][]memoryRecord // newest first
	expiresAt  map[string]time.Time
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryMaxEntries sets the per-user queue cap.
func WithMemoryMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithMemoryTTL sets the per-user key expiry window.
func WithMemoryTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides the time source. Tests use this to age entries
// without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory replay store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		queues:     make(map[string][]memoryRecord),
		expiresAt:  make(map[string]time.Time),
		maxEntries: DefaultMaxEntries,
		ttl:        DefaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append pushes newest-first, trims to the cap, and refreshes the key TTL.
func (s *MemoryStore) Append(ctx context.Context, userID string, env envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.dropExpiredLocked(userID, now)

	q := append([]memoryRecord{{env: env, storedAt: now}}, s.queues[userID]...)
	if len(q) > s.maxEntries {
		q = q[:s.maxEntries]
	}
	s.queues[userID] = q
	s.expiresAt[userID] = now.Add(s.ttl)
	return nil
}

// ReadRecent returns up to limit entries younger than maxAge, oldest first.
func (s *MemoryStore) ReadRecent(ctx context.Context, userID string, maxAge time.Duration, limit int) ([]envelope.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}
	if maxAge <= 0 || maxAge > s.ttl {
		maxAge = s.ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.dropExpiredLocked(userID, now)

	q := s.queues[userID]
	if len(q) > limit {
		q = q[:limit]
	}

	cutoff := now.Add(-maxAge)
	out := make([]envelope.Envelope, 0, len(q))
	for i := len(q) - 1; i >= 0; i-- {
		if q[i].storedAt.Before(cutoff) {
			continue
		}
		out = append(out, q[i].env)
	}
	return out, nil
}

// Clear drops the user's queue.
func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, userID)
	delete(s.expiresAt, userID)
	return nil
}

// dropExpiredLocked mimics whole-key TTL expiry: once the key's TTL lapses
// the entire queue is gone, matching Redis semantics.
func (s *MemoryStore) dropExpiredLocked(userID string, now time.Time) {
	if exp, ok := s.expiresAt[userID]; ok && now.After(exp) {
		delete(s.queues, userID)
		delete(s.expiresAt, userID)
	}
}
