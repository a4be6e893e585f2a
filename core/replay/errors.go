package replay

import "errors"

var (
	// ErrStoreUnavailable wraps backend failures. Callers treat these as
	// best-effort: log and continue, never block live delivery.
	ErrStoreUnavailable = errors.New("replay store unavailable")

	// ErrEncodeFailed is returned when an envelope cannot be serialized
	// for persistence.
	ErrEncodeFailed = errors.New("failed to encode envelope for replay")
)
