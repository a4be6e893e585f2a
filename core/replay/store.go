package replay

import (
	"context"
	"time"

	"github.com/dmitrymomot/pulsar/core/envelope"
)

const (
	// DefaultMaxEntries is the per-user queue length cap.
	DefaultMaxEntries = 100

	// DefaultTTL is the expiry window applied to the whole per-user key.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultKeyPrefix namespaces replay keys in the backing store.
	DefaultKeyPrefix = "pulsar:replay:"
)

// Store is the durable replay queue contract. Append pushes newest-first,
// trims to the retention cap, and refreshes the key TTL as one logical
// operation. ReadRecent returns entries younger than maxAge, capped at
// limit, ordered oldest to newest.
type Store interface {
	Append(ctx context.Context, userID string, env envelope.Envelope) error
	ReadRecent(ctx context.Context, userID string, maxAge time.Duration, limit int) ([]envelope.Envelope, error)
	Clear(ctx context.Context, userID string) error
}
