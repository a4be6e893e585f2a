package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/pulsar/core/logger"
)

// DefaultReceiveTimeout bounds each wait on the subscriber socket. The loop
// wakes at least this often to notice closed subscriptions.
const DefaultReceiveTimeout = 5 * time.Second

// RedisRelay implements Relay on top of Redis pub/sub. PUBLISH returns the
// subscriber count, which backs the delivered flag directly.
type RedisRelay struct {
	client         redis.UniversalClient
	receiveTimeout time.Duration
	logger         *slog.Logger
}

// RedisRelayOption configures a RedisRelay.
type RedisRelayOption func(*RedisRelay)

// WithReceiveTimeout sets the bounded wait used by listen loops. Non-positive
// values keep the default.
func WithReceiveTimeout(d time.Duration) RedisRelayOption {
	return func(r *RedisRelay) {
		if d > 0 {
			r.receiveTimeout = d
		}
	}
}

// WithRedisRelayLogger configures structured logging for the relay.
func WithRedisRelayLogger(logger *slog.Logger) RedisRelayOption {
	return func(r *RedisRelay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedisRelay creates a relay over the given Redis client.
func NewRedisRelay(client redis.UniversalClient, opts ...RedisRelayOption) *RedisRelay {
	r := &RedisRelay{
		client:         client,
		receiveTimeout: DefaultReceiveTimeout,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish sends the payload on channel. The returned flag is true iff at
// least one subscriber received it.
func (r *RedisRelay) Publish(ctx context.Context, channel string, data []byte) (bool, error) {
	receivers, err := r.client.Publish(ctx, channel, data).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return receivers > 0, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	closed atomic.Bool
}

func (s *redisSubscription) Close() error {
	s.closed.Store(true)
	return s.pubsub.Close()
}

// Subscribe starts a listen loop on channel. The loop uses a bounded-timeout
// receive, recovers panics thrown by onMessage, skips undecodable payloads,
// and terminates only when the subscription is closed or the broker
// connection is lost.
func (r *RedisRelay) Subscribe(ctx context.Context, channel string, onMessage Handler, onError ErrorHandler) (Subscription, error) {
	if onMessage == nil {
		return nil, ErrNilHandler
	}

	pubsub := r.client.Subscribe(ctx, channel)
	// Confirm the SUBSCRIBE before returning so callers know the channel
	// is live.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}

	sub := &redisSubscription{pubsub: pubsub}
	go r.listen(ctx, channel, sub, onMessage, onError)

	r.logger.Debug("relay subscription established", logger.Channel(channel))
	return sub, nil
}

func (r *RedisRelay) listen(ctx context.Context, channel string, sub *redisSubscription, onMessage Handler, onError ErrorHandler) {
	for {
		if ctx.Err() != nil || sub.closed.Load() {
			return
		}

		msg, err := sub.pubsub.ReceiveTimeout(ctx, r.receiveTimeout)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if sub.closed.Load() || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			r.logger.Error("relay connection lost",
				logger.Channel(channel),
				logger.Error(err))
			if onError != nil {
				onError(fmt.Errorf("%w: %v", ErrConnectionLost, err))
			}
			return
		}

		m, ok := msg.(*redis.Message)
		if !ok {
			// Subscription confirmations and pongs are not messages.
			continue
		}

		r.dispatch(channel, []byte(m.Payload), onMessage)
	}
}

// dispatch invokes the callback with panic containment so one bad handler
// invocation cannot tear down the subscription.
func (r *RedisRelay) dispatch(channel string, data []byte, onMessage Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("relay handler panicked",
				logger.Channel(channel),
				slog.Any("panic", rec))
		}
	}()
	onMessage(data)
}

// Close is a no-op for the relay itself; the Redis client lifecycle belongs
// to its owner. Individual subscriptions are closed via their handles.
func (r *RedisRelay) Close() error { return nil }
