package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/pulsar/core/envelope"
)

// RedisStore keeps each user's replay queue in a Redis list. The newest
// entry sits at the head, LTRIM enforces the count cap, and EXPIRE applies
// the TTL to the whole key. All three run in a single pipeline so an append
// is one logical operation.
type RedisStore struct {
	client     redis.UniversalClient
	maxEntries int
	ttl        time.Duration
	keyPrefix  string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithMaxEntries sets the per-user queue cap. Non-positive values keep the
// default.
func WithMaxEntries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithTTL sets the key expiry window. Non-positive values keep the default.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithKeyPrefix sets the key namespace. Empty values keep the default.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewRedisStore creates a replay store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		maxEntries: DefaultMaxEntries,
		ttl:        DefaultTTL,
		keyPrefix:  DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(userID string) string {
	return s.keyPrefix + userID
}

// Append pushes the envelope to the head of the user's queue, trims the
// queue to the retention cap, and refreshes the key TTL.
func (s *RedisStore) Append(ctx context.Context, userID string, env envelope.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.maxEntries-1))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ReadRecent returns up to limit entries younger than maxAge, oldest first.
// A non-positive limit falls back to the retention cap; maxAge is clamped to
// the TTL since older entries are not retrievable by contract.
func (s *RedisStore) ReadRecent(ctx context.Context, userID string, maxAge time.Duration, limit int) ([]envelope.Envelope, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}
	if maxAge <= 0 || maxAge > s.ttl {
		maxAge = s.ttl
	}

	raw, err := s.client.LRange(ctx, s.key(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	// The list is newest-first; collect in reverse to hand back
	// chronological order.
	out := make([]envelope.Envelope, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		env, err := envelope.Decode([]byte(raw[i]))
		if err != nil {
			// A corrupt record is skipped rather than failing the replay.
			continue
		}
		if env.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

// Clear drops the user's entire replay queue.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
