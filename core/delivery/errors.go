package delivery

import "errors"

var (
	// ErrNoTarget is returned when a send names no user.
	ErrNoTarget = errors.New("send requires a target user id")

	// ErrCoordinatorClosed is returned for sends after Close.
	ErrCoordinatorClosed = errors.New("delivery coordinator is closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("delivery coordinator already started")
)
