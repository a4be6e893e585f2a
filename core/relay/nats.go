package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrymomot/pulsar/core/logger"
)

// NATSRelay implements Relay over core NATS subjects. Channel names are
// mapped to subjects by replacing ":" with "." ("user:42" becomes
// "user.42").
//
// Core NATS does not report subscriber counts, so Publish returns true
// whenever the publish itself succeeds. Deployments that need an accurate
// delivered flag should prefer RedisRelay.
type NATSRelay struct {
	conn           *nats.Conn
	subjectPrefix  string
	receiveTimeout time.Duration
	logger         *slog.Logger
}

// NATSRelayOption configures a NATSRelay.
type NATSRelayOption func(*NATSRelay)

// WithSubjectPrefix namespaces all subjects, e.g. "pulsar".
func WithSubjectPrefix(prefix string) NATSRelayOption {
	return func(r *NATSRelay) {
		r.subjectPrefix = strings.Trim(prefix, ".")
	}
}

// WithNATSReceiveTimeout sets the bounded wait used by listen loops.
func WithNATSReceiveTimeout(d time.Duration) NATSRelayOption {
	return func(r *NATSRelay) {
		if d > 0 {
			r.receiveTimeout = d
		}
	}
}

// WithNATSRelayLogger configures structured logging for the relay.
func WithNATSRelayLogger(logger *slog.Logger) NATSRelayOption {
	return func(r *NATSRelay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewNATSRelay creates a relay over an established NATS connection. The
// connection lifecycle belongs to the caller.
func NewNATSRelay(conn *nats.Conn, opts ...NATSRelayOption) *NATSRelay {
	r := &NATSRelay{
		conn:           conn,
		receiveTimeout: DefaultReceiveTimeout,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *NATSRelay) subject(channel string) string {
	s := strings.ReplaceAll(channel, ":", ".")
	if r.subjectPrefix != "" {
		return r.subjectPrefix + "." + s
	}
	return s
}

// Publish sends the payload on the channel's subject.
func (r *NATSRelay) Publish(ctx context.Context, channel string, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if err := r.conn.Publish(r.subject(channel), data); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return true, nil
}

type natsSubscription struct {
	sub    *nats.Subscription
	ch     chan *nats.Msg
	closed atomic.Bool
}

func (s *natsSubscription) Close() error {
	s.closed.Store(true)
	return s.sub.Unsubscribe()
}

// Subscribe starts a listen loop on the channel's subject. NATS reconnects
// transparently, so the loop terminates with onError only once the
// connection is closed for good.
func (r *NATSRelay) Subscribe(ctx context.Context, channel string, onMessage Handler, onError ErrorHandler) (Subscription, error) {
	if onMessage == nil {
		return nil, ErrNilHandler
	}

	ch := make(chan *nats.Msg, 64)
	natsSub, err := r.conn.ChanSubscribe(r.subject(channel), ch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubscribeFailed, err)
	}

	sub := &natsSubscription{sub: natsSub, ch: ch}
	go r.listen(ctx, channel, sub, onMessage, onError)

	r.logger.Debug("relay subscription established",
		logger.Channel(channel),
		slog.String("subject", r.subject(channel)))
	return sub, nil
}

func (r *NATSRelay) listen(ctx context.Context, channel string, sub *natsSubscription, onMessage Handler, onError ErrorHandler) {
	timer := time.NewTimer(r.receiveTimeout)
	defer timer.Stop()

	for {
		timer.Reset(r.receiveTimeout)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if sub.closed.Load() {
				return
			}
			if r.conn.IsClosed() {
				r.logger.Error("relay connection lost", logger.Channel(channel))
				if onError != nil {
					onError(fmt.Errorf("%w: nats connection closed", ErrConnectionLost))
				}
				return
			}
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			r.dispatch(channel, msg.Data, onMessage)
		}
	}
}

func (r *NATSRelay) dispatch(channel string, data []byte, onMessage Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("relay handler panicked",
				logger.Channel(channel),
				slog.Any("panic", rec))
		}
	}()
	onMessage(data)
}

// Close is a no-op; the NATS connection lifecycle belongs to its owner.
func (r *NATSRelay) Close() error { return nil }
