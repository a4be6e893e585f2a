package relay

import "context"

// BroadcastChannel is the routing key shared by all users.
const BroadcastChannel = "broadcast"

// UserChannel returns the routing key for one user's messages.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Handler receives raw payloads arriving on a subscribed channel. Framing
// is the publisher's concern; the relay moves opaque bytes.
type Handler func(data []byte)

// ErrorHandler is notified when a listen loop dies with its terminal error.
type ErrorHandler func(err error)

// Subscription is a handle to a live listen loop. Close tears the loop down
// without invoking the error handler.
type Subscription interface {
	Close() error
}

// Relay is the cross-process pub/sub contract.
//
// Publish returns true iff at least one subscriber was listening on the
// channel when the message was published. Subscribe runs onMessage for every
// payload arriving on channel until the subscription is closed or the
// broker connection is lost, in which case onError fires exactly once.
type Relay interface {
	Publish(ctx context.Context, channel string, data []byte) (bool, error)
	Subscribe(ctx context.Context, channel string, onMessage Handler, onError ErrorHandler) (Subscription, error)
	Close() error
}
