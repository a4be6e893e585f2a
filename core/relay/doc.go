// Package relay provides the cross-process publish/subscribe channel that
// lets a message produced on one server process reach connections held by
// another.
//
// Channels are pure routing keys: one per user plus one broadcast channel.
// Publish reports whether at least one subscriber was present, which is
// independent of durability; the replay queue covers offline users.
//
// Subscribe establishes a long-lived listen loop. The loop waits with a
// bounded timeout rather than busy-spinning, survives panics thrown by the
// message callback (logged and skipped), and terminates only when the
// underlying broker connection is lost — at which point the error callback
// fires and the caller resubscribes with backoff.
//
// Backends: RedisRelay (Redis pub/sub), NATSRelay, and MemoryRelay for
// single-process deployments and tests.
package relay
