// Package registry tracks live realtime connections per user.
//
// The registry is the only shared mutable state in the delivery subsystem.
// All mutation happens under an internal lock that is held only around map
// operations, never across socket writes or other blocking calls. Listing
// returns point-in-time snapshots that are safe to iterate while concurrent
// registration and removal occur.
//
// A user's entry is pruned as soon as its last connection is removed, so the
// registry never leaks empty entries. Unregister is idempotent.
//
// The package also provides Reaper, a background loop that evicts
// connections whose last activity exceeds a staleness threshold.
package registry
