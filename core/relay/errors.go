package relay

import "errors"

var (
	// ErrPublishFailed wraps broker errors on publish.
	ErrPublishFailed = errors.New("relay publish failed")

	// ErrSubscribeFailed wraps broker errors while establishing a
	// subscription.
	ErrSubscribeFailed = errors.New("relay subscribe failed")

	// ErrConnectionLost is passed to the error handler when the listen
	// loop dies with the broker connection. Callers resubscribe with
	// backoff.
	ErrConnectionLost = errors.New("relay connection lost")

	// ErrNilHandler is returned when Subscribe is called without a
	// message callback.
	ErrNilHandler = errors.New("relay subscribe requires a message handler")

	// ErrRelayClosed is returned when publishing on a closed relay.
	ErrRelayClosed = errors.New("relay is closed")
)
