package ws

import "errors"

// Close codes sent to clients. Codes in the 4000 range are
// application-defined per RFC 6455.
const (
	// CloseAuthFailed rejects a handshake whose token could not be
	// resolved to a user.
	CloseAuthFailed = 4401

	// CloseInternal is the generic code for unexpected server-side
	// failures.
	CloseInternal = 1011

	// CloseGoingAway is sent when the server shuts down.
	CloseGoingAway = 1001
)

var (
	// ErrMissingToken is returned when the handshake carries no auth
	// token.
	ErrMissingToken = errors.New("missing auth token")

	// ErrAuthFailed wraps token verification failures.
	ErrAuthFailed = errors.New("authentication failed")
)
