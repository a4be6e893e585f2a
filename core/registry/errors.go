package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrReaperAlreadyStarted is returned when Start is called on a
	// running reaper.
	ErrReaperAlreadyStarted = errors.New("reaper already started")

	// ErrReaperNotStarted is returned when Stop is called on a reaper
	// that is not running.
	ErrReaperNotStarted = errors.New("reaper not started")

	// ErrSweepPanic wraps a panic recovered during a reaper sweep.
	ErrSweepPanic = errors.New("reaper sweep panicked")
)

func newSweepPanicError(v any) error {
	return fmt.Errorf("%w: %v", ErrSweepPanic, v)
}
