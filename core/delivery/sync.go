package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/logger"
	"github.com/dmitrymomot/pulsar/core/registry"
	"github.com/dmitrymomot/pulsar/core/relay"
)

// Connect registers the connection, ensures a relay subscription exists for
// the user's channel, and runs reconnect synchronization: replay of recent
// persisted envelopes followed by an authoritative full_sync snapshot.
//
// Replayed envelopes go to the new connection only, never to the user's
// other live sockets. A failed replay or snapshot is logged; the connection
// stays open and a later dashboard_refresh frame can retry the snapshot.
func (c *Coordinator) Connect(ctx context.Context, conn *registry.Connection) error {
	if conn == nil {
		return nil
	}
	if c.isClosed() {
		return ErrCoordinatorClosed
	}

	c.registry.Register(conn)

	if c.relay != nil {
		channel := relay.UserChannel(conn.UserID())
		c.mu.Lock()
		_, subscribed := c.subs[channel]
		lctx := c.ctx
		c.mu.Unlock()
		if !subscribed {
			if lctx == nil {
				lctx = ctx
			}
			if err := c.subscribe(lctx, channel); err != nil {
				c.logger.Error("user channel subscription failed",
					logger.UserID(conn.UserID()),
					logger.Error(err))
			}
		}
	}

	c.syncConnection(ctx, conn)
	return nil
}

// Disconnect removes the connection and closes it. When it was the user's
// last connection the user's relay subscription is dropped as well.
// Idempotent, like registry.Unregister.
func (c *Coordinator) Disconnect(conn *registry.Connection) {
	if conn == nil {
		return
	}

	c.registry.Unregister(conn)
	_ = conn.Close()

	if !c.registry.IsOnline(conn.UserID()) {
		channel := relay.UserChannel(conn.UserID())
		c.mu.Lock()
		sub, ok := c.subs[channel]
		delete(c.subs, channel)
		c.mu.Unlock()
		if ok {
			_ = sub.Close()
		}
	}
}

// syncConnection replays persisted envelopes in chronological order, then
// pushes the snapshot. Each step is independently best-effort.
func (c *Coordinator) syncConnection(ctx context.Context, conn *registry.Connection) {
	if c.store != nil {
		envs, err := c.store.ReadRecent(ctx, conn.UserID(), c.replayMaxAge, c.replayLimit)
		if err != nil {
			c.logger.Error("reconnect replay read failed",
				logger.UserID(conn.UserID()),
				logger.Error(err))
		} else {
			replayed := 0
			for _, env := range envs {
				if !c.sendToConnection(conn, env) {
					return
				}
				replayed++
			}
			if replayed > 0 {
				c.logger.Debug("replayed persisted envelopes",
					logger.ConnectionID(conn.ID()),
					logger.Count("count", replayed))
			}
		}
	}

	c.PushSnapshot(ctx, conn)
}

// PushSnapshot requests the authoritative aggregate state and delivers it as
// a full_sync envelope superseding any replayed deltas. Also invoked for
// explicit dashboard_refresh client frames. Failure to build the snapshot is
// logged and leaves the connection usable.
func (c *Coordinator) PushSnapshot(ctx context.Context, conn *registry.Connection) {
	if c.snapshots == nil {
		return
	}

	snap, err := c.snapshots.Snapshot(ctx, conn.UserID())
	if err != nil {
		c.logger.Error("snapshot build failed, connection remains open",
			logger.UserID(conn.UserID()),
			logger.Error(err))
		return
	}

	env, err := envelope.New(conn.UserID(), envelope.TypeFullSync, envelope.FullSyncPayload{
		Snapshot:    snap,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error("full sync envelope build failed",
			logger.UserID(conn.UserID()),
			logger.Error(err))
		return
	}

	c.sendToConnection(conn, env)
}

// sendToConnection writes one envelope to a single connection, applying the
// same self-healing eviction as fan-out. Returns false when the connection
// died.
func (c *Coordinator) sendToConnection(conn *registry.Connection, env envelope.Envelope) bool {
	data, err := env.Encode()
	if err != nil {
		c.logger.Error("envelope encode failed",
			slog.String("envelope_id", env.ID),
			logger.Error(err))
		return true
	}
	if err := conn.Send(data); err != nil {
		c.registry.Unregister(conn)
		_ = conn.Close()
		c.logger.Warn("socket write failed, connection evicted",
			logger.ConnectionID(conn.ID()),
			logger.UserID(conn.UserID()),
			logger.Error(err))
		return false
	}
	return true
}
