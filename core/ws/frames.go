package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/logger"
	"github.com/dmitrymomot/pulsar/core/registry"
)

// clientFrame is the inbound message shape. Unknown types get an error
// envelope reply, never a disconnect.
type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	frameTypePing         = "ping"
	frameTypeSubscribe    = "subscribe"
	frameTypeUnsubscribe  = "unsubscribe"
	frameTypeRefresh      = "dashboard_refresh"
	frameTypeMarkRead     = "mark_notification_read"
	frameTypeGetConnStats = "get_connection_stats"
)

type topicsFrame struct {
	Topics []string `json:"topics"`
}

type markReadFrame struct {
	NotificationID string `json:"notification_id"`
}

func (h *Handler) dispatch(ctx context.Context, conn *registry.Connection, frame clientFrame) {
	switch frame.Type {
	case frameTypePing:
		h.handlePing(conn)
	case frameTypeSubscribe, frameTypeUnsubscribe:
		h.handleTopics(conn, frame)
	case frameTypeRefresh:
		h.coordinator.PushSnapshot(ctx, conn)
	case frameTypeMarkRead:
		h.handleMarkRead(ctx, conn, frame)
	case frameTypeGetConnStats:
		h.handleStats(conn)
	default:
		h.replyError(conn, "unknown_frame", "unsupported frame type: "+frame.Type)
	}
}

func (h *Handler) handlePing(conn *registry.Connection) {
	env, err := envelope.New(conn.UserID(), envelope.TypePong, envelope.PingPayload{At: time.Now().UTC()})
	if err != nil {
		h.logger.Error("pong build failed", logger.Error(err))
		return
	}
	h.reply(conn, env)
}

func (h *Handler) handleTopics(conn *registry.Connection, frame clientFrame) {
	var req topicsFrame
	if err := json.Unmarshal(frame.Payload, &req); err != nil || len(req.Topics) == 0 {
		h.replyError(conn, "invalid_payload", frame.Type+" requires a topics list")
		return
	}
	if frame.Type == frameTypeSubscribe {
		conn.Subscribe(req.Topics...)
	} else {
		conn.Unsubscribe(req.Topics...)
	}
}

func (h *Handler) handleMarkRead(ctx context.Context, conn *registry.Connection, frame clientFrame) {
	if h.marker == nil {
		h.replyError(conn, "unsupported", "mark_notification_read is not available")
		return
	}
	var req markReadFrame
	if err := json.Unmarshal(frame.Payload, &req); err != nil || req.NotificationID == "" {
		h.replyError(conn, "invalid_payload", "mark_notification_read requires notification_id")
		return
	}
	if err := h.marker.MarkRead(ctx, conn.UserID(), req.NotificationID); err != nil {
		h.logger.Warn("mark read failed",
			logger.UserID(conn.UserID()),
			slog.String("notification_id", req.NotificationID),
			logger.Error(err))
		h.replyError(conn, "mark_read_failed", "could not mark notification read")
	}
}

func (h *Handler) handleStats(conn *registry.Connection) {
	stats := h.coordinator.Stats()
	env, err := envelope.New(conn.UserID(), envelope.TypeStats, envelope.StatsPayload{
		ActiveConnections: stats.ActiveConnections,
		ConnectedUsers:    stats.ConnectedUsers,
	})
	if err != nil {
		h.logger.Error("stats build failed", logger.Error(err))
		return
	}
	h.reply(conn, env)
}

func (h *Handler) replyError(conn *registry.Connection, code, message string) {
	env, err := envelope.New(conn.UserID(), envelope.TypeError, envelope.ErrorPayload{
		Code:    code,
		Message: message,
	})
	if err != nil {
		h.logger.Error("error envelope build failed", logger.Error(err))
		return
	}
	h.reply(conn, env)
}

// reply writes a control envelope to this connection only. A dead socket is
// left for the read loop or reaper to clean up.
func (h *Handler) reply(conn *registry.Connection, env envelope.Envelope) {
	data, err := env.Encode()
	if err != nil {
		h.logger.Error("envelope encode failed", logger.Error(err))
		return
	}
	if err := conn.Send(data); err != nil {
		h.logger.Debug("reply write failed",
			logger.ConnectionID(conn.ID()),
			logger.Error(err))
	}
}
