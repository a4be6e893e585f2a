package delivery

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/logger"
	"github.com/dmitrymomot/pulsar/core/registry"
	"github.com/dmitrymomot/pulsar/core/relay"
)

// SendToUser validates the message, fans it out to the user's live sockets,
// writes it through to the replay queue when persist is true, and publishes
// it on the user's relay channel for other processes.
//
// A validation failure does not drop the message: a best-effort fallback
// envelope is delivered instead and the failure is logged. Socket write
// failures evict only the failing connection. Store and relay failures are
// logged and never fail the call.
func (c *Coordinator) SendToUser(ctx context.Context, userID string, msg Message, persist bool) error {
	if userID == "" {
		return ErrNoTarget
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrCoordinatorClosed
	}

	env, err := envelope.New(userID, msg.Type, msg.Payload)
	if err != nil {
		c.logger.Warn("message failed validation, delivering fallback envelope",
			logger.UserID(userID),
			logger.EnvelopeType(msg.Type.String()),
			logger.Error(err))
		env = envelope.Fallback(userID, msg.Type, msg.Payload)
	}

	c.fanOut(c.registry.Connections(userID), env)

	if persist && !env.Type.Transient() {
		c.persist(ctx, userID, env)
	}

	c.publish(ctx, relay.UserChannel(userID), relayFrame{
		Origin:   c.instanceID,
		Envelope: env,
	})
	return nil
}

// Broadcast applies the per-target send logic to every locally known user
// and publishes the message on the broadcast relay channel so other
// processes can deliver to theirs. Persistence follows the coordinator's
// per-type policy; heartbeats never persist, alerts always do under the
// default policy.
func (c *Coordinator) Broadcast(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrCoordinatorClosed
	}

	persist := c.persistOnBroadc(msg.Type)
	for _, userID := range c.registry.Users() {
		env, err := envelope.New(userID, msg.Type, msg.Payload)
		if err != nil {
			c.logger.Warn("broadcast failed validation, delivering fallback envelope",
				logger.UserID(userID),
				logger.EnvelopeType(msg.Type.String()),
				logger.Error(err))
			env = envelope.Fallback(userID, msg.Type, msg.Payload)
		}

		c.fanOut(c.registry.Connections(userID), env)
		if persist && !env.Type.Transient() {
			c.persist(ctx, userID, env)
		}
	}

	env, err := envelope.NewBroadcast(msg.Type, msg.Payload)
	if err != nil {
		env = envelope.Fallback("", msg.Type, msg.Payload)
	}
	c.publish(ctx, relay.BroadcastChannel, relayFrame{
		Origin:    c.instanceID,
		Broadcast: true,
		Envelope:  env,
	})
	return nil
}

// fanOut writes the envelope to each connection in the snapshot. A failing
// socket is unregistered and closed immediately so a dead connection never
// lingers in the registry; the remaining targets are unaffected.
func (c *Coordinator) fanOut(conns []*registry.Connection, env envelope.Envelope) int {
	if len(conns) == 0 {
		return 0
	}

	data, err := env.Encode()
	if err != nil {
		c.logger.Error("envelope encode failed, message dropped",
			slog.String("envelope_id", env.ID),
			logger.Error(err))
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if !conn.Wants(env.Type.String()) {
			continue
		}
		if err := conn.Send(data); err != nil {
			c.registry.Unregister(conn)
			_ = conn.Close()
			c.logger.Warn("socket write failed, connection evicted",
				logger.ConnectionID(conn.ID()),
				logger.UserID(conn.UserID()),
				logger.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// persist appends the envelope to the user's replay queue. Durability is
// decoupled from live delivery: failures are logged, never propagated.
func (c *Coordinator) persist(ctx context.Context, userID string, env envelope.Envelope) {
	if c.store == nil {
		return
	}
	if err := c.store.Append(ctx, userID, env); err != nil {
		c.logger.Error("replay append failed",
			logger.UserID(userID),
			slog.String("envelope_id", env.ID),
			logger.Error(err))
	}
}
