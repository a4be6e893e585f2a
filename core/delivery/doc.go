// Package delivery orchestrates realtime message delivery: schema
// validation, fan-out to a user's live sockets, write-through persistence to
// the replay queue, and cross-process relay publishing.
//
// The coordinator is deliberately forgiving. A failed socket write
// unregisters and closes only that socket; a replay store failure is logged
// and never fails the send; a relay outage triggers resubscription with
// backoff. The only hard failures SendToUser and Broadcast surface are a
// missing target and a cancelled context.
//
// Ordering guarantees are per connection only: writes to one socket happen
// in the order SendToUser was invoked, and persistence appends happen in
// call order. Nothing is guaranteed across users or across one user's
// simultaneous connections.
//
// On reconnect the coordinator replays recent persisted envelopes to the new
// connection only, then pushes an authoritative full_sync snapshot obtained
// from the external domain collaborator. Either step failing leaves the
// connection open and usable.
package delivery
