package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/logger"
)

// relayFrame is the wire format on relay channels. Origin carries the
// publishing instance id so a process can skip its own echoes; without it
// every message would be delivered twice on the publishing process.
type relayFrame struct {
	Origin    string            `json:"origin"`
	Broadcast bool              `json:"broadcast,omitempty"`
	Envelope  envelope.Envelope `json:"envelope"`
}

// publish sends a frame on the relay channel, best-effort. The delivered
// flag is logged for observability; durability is the replay queue's job.
func (c *Coordinator) publish(ctx context.Context, channel string, frame relayFrame) {
	if c.relay == nil {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("relay frame encode failed",
			logger.Channel(channel),
			logger.Error(err))
		return
	}

	delivered, err := c.relay.Publish(ctx, channel, data)
	if err != nil {
		c.logger.Error("relay publish failed",
			logger.Channel(channel),
			logger.Error(err))
		return
	}
	if !delivered {
		c.logger.Debug("relay publish had no subscribers",
			logger.Channel(channel))
	}
}

// subscribe establishes a listen loop on channel and records the handle.
// When the loop dies with the broker connection, a background goroutine
// resubscribes with exponential backoff.
func (c *Coordinator) subscribe(ctx context.Context, channel string) error {
	sub, err := c.relay.Subscribe(ctx, channel, c.onFrame, func(err error) {
		c.logger.Error("relay subscription lost, resubscribing",
			logger.Channel(channel),
			logger.Error(err))
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.wg.Add(1)
		c.mu.Unlock()
		go c.resubscribe(ctx, channel)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = sub.Close()
		return ErrCoordinatorClosed
	}
	if old, ok := c.subs[channel]; ok {
		_ = old.Close()
	}
	c.subs[channel] = sub
	return nil
}

// resubscribe retries the subscription with doubling backoff until it
// succeeds, the channel is no longer wanted, or the coordinator shuts down.
func (c *Coordinator) resubscribe(ctx context.Context, channel string) {
	defer c.wg.Done()

	backoff := c.resubBase
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.mu.Lock()
		_, wanted := c.subs[channel]
		closed := c.closed
		c.mu.Unlock()
		if closed || !wanted {
			return
		}

		if err := c.subscribe(ctx, channel); err != nil {
			if errors.Is(err, ErrCoordinatorClosed) {
				return
			}
			c.logger.Warn("relay resubscribe failed",
				logger.Channel(channel),
				slog.Duration("retry_in", backoff),
				logger.Error(err))
			if backoff *= 2; backoff > c.resubMax {
				backoff = c.resubMax
			}
			continue
		}

		c.logger.Info("relay subscription restored", logger.Channel(channel))
		return
	}
}

// onFrame handles a payload arriving from another process. Frames published
// by this instance are echoes and skipped. Remote frames are delivered to
// local sockets only: persistence and re-publishing already happened on the
// origin process.
func (c *Coordinator) onFrame(data []byte) {
	var frame relayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("undecodable relay frame skipped", logger.Error(err))
		return
	}
	if frame.Origin == c.instanceID {
		return
	}

	env := frame.Envelope
	if frame.Broadcast {
		for _, userID := range c.registry.Users() {
			targeted := env
			targeted.UserID = userID
			c.fanOut(c.registry.Connections(userID), targeted)
		}
		return
	}
	if env.UserID == "" {
		c.logger.Warn("relay frame with no target skipped",
			slog.String("envelope_id", env.ID))
		return
	}
	c.fanOut(c.registry.Connections(env.UserID), env)
}
