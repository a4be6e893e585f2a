// Package replay provides the durable per-user replay queue that covers
// offline gaps between a user's sessions.
//
// Every persisted send is appended newest-first, the queue is trimmed to the
// most recent entries, and the whole per-user key carries a TTL refreshed on
// each append. Entries violating either bound are not retrievable: reads
// always return records that are both within the count cap and within the
// requested age window, whichever is stricter, ordered oldest to newest.
//
// The queue is the subsystem's only backpressure mechanism. Store failures
// are best-effort relative to live delivery: callers log them and continue.
//
// Two implementations are provided: RedisStore on top of a Redis list
// (LPUSH + LTRIM + EXPIRE in one pipelined operation), and MemoryStore for
// tests and single-process deployments.
package replay
