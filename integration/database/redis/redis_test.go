package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pulsar/integration/database/redis"
)

func TestConnectValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()

		_, err := redis.Connect(ctx, redis.Config{})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()

		_, err := redis.Connect(ctx, redis.Config{
			ConnectionURL: "http://not-redis:6379",
		})
		assert.ErrorIs(t, err, redis.ErrFailedToParseConnString)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()

		// Reserved TEST-NET address, nothing listens there.
		_, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  "redis://192.0.2.1:6379/0",
			RetryAttempts:  1,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 200 * time.Millisecond,
		})
		assert.ErrorIs(t, err, redis.ErrNotReady)
	})
}
