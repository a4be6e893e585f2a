package envelope

import "errors"

var (
	// ErrUnknownType is returned when the type tag is not part of the
	// closed envelope type set.
	ErrUnknownType = errors.New("unknown envelope type")

	// ErrInvalidPayload is returned when a payload does not match the
	// schema declared by its type tag.
	ErrInvalidPayload = errors.New("payload does not match envelope type")

	// ErrMissingUser is returned when an envelope is built without a
	// target user id.
	ErrMissingUser = errors.New("envelope requires a target user id")

	// ErrMalformed is returned when wire data cannot be decoded into an
	// envelope at all.
	ErrMalformed = errors.New("malformed envelope data")
)
