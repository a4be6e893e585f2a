package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/pulsar/core/logger"
	"github.com/dmitrymomot/pulsar/core/registry"
)

const (
	// DefaultPongWait is how long a connection may stay silent before the
	// read loop gives up on it.
	DefaultPongWait = 60 * time.Second

	// DefaultPingInterval is the protocol ping period; must be shorter
	// than the pong wait.
	DefaultPingInterval = 25 * time.Second

	// DefaultWriteTimeout bounds every socket write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxMessageSize caps inbound client frames.
	DefaultMaxMessageSize = 32 << 10
)

// TokenVerifier resolves a handshake auth token to a user identity. It is an
// external collaborator; pkg/token provides a JWT-backed implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// NotificationMarker handles mark_notification_read client frames. External
// collaborator; the realtime layer only routes the request.
type NotificationMarker interface {
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// Coordinator is the slice of the delivery coordinator the transport needs.
type Coordinator interface {
	Connect(ctx context.Context, conn *registry.Connection) error
	Disconnect(conn *registry.Connection)
	PushSnapshot(ctx context.Context, conn *registry.Connection)
	Stats() registry.Stats
}

// Handler upgrades and serves realtime client connections.
type Handler struct {
	coordinator Coordinator
	verifier    TokenVerifier
	marker      NotificationMarker

	upgrader       websocket.Upgrader
	tokenParam     string
	pongWait       time.Duration
	pingInterval   time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	logger         *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithNotificationMarker wires the collaborator for
// mark_notification_read frames. Without it those frames get an error
// envelope reply.
func WithNotificationMarker(m NotificationMarker) HandlerOption {
	return func(h *Handler) { h.marker = m }
}

// WithTokenParam sets the query parameter carrying the auth token.
// Default is "token".
func WithTokenParam(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.tokenParam = name
		}
	}
}

// WithOriginCheck overrides the upgrade origin policy.
func WithOriginCheck(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// WithAllowAnyOrigin disables origin checking. Intended for development.
func WithAllowAnyOrigin() HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// WithKeepalive tunes the protocol ping period and the silence threshold.
func WithKeepalive(pingInterval, pongWait time.Duration) HandlerOption {
	return func(h *Handler) {
		if pingInterval > 0 {
			h.pingInterval = pingInterval
		}
		if pongWait > 0 {
			h.pongWait = pongWait
		}
	}
}

// WithWriteTimeout bounds socket writes.
func WithWriteTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithMaxMessageSize caps inbound frame size in bytes.
func WithMaxMessageSize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessageSize = n
		}
	}
}

// WithHandlerLogger configures structured logging for the transport.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates the WebSocket endpoint. Registration and reconnect
// sync happen through the coordinator.
func NewHandler(coordinator Coordinator, verifier TokenVerifier, opts ...HandlerOption) *Handler {
	h := &Handler{
		coordinator: coordinator,
		verifier:    verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		tokenParam:     "token",
		pongWait:       DefaultPongWait,
		pingInterval:   DefaultPingInterval,
		writeTimeout:   DefaultWriteTimeout,
		maxMessageSize: DefaultMaxMessageSize,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until the client
// goes away, a write fails, or the reaper evicts it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	sock := &socket{conn: wsConn, writeTimeout: h.writeTimeout}

	userID, err := h.authenticate(r)
	if err != nil {
		h.logger.Warn("handshake rejected",
			slog.String("remote_addr", r.RemoteAddr),
			logger.Error(err))
		sock.closeWith(CloseAuthFailed, "authentication failed")
		return
	}

	conn := registry.NewConnection(userID, sock, registry.Metadata{
		ClientInfo: r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	})

	ctx := r.Context()
	if err := h.coordinator.Connect(ctx, conn); err != nil {
		h.logger.Error("connection setup failed",
			logger.UserID(userID),
			logger.Error(err))
		sock.closeWith(CloseInternal, "setup failed")
		return
	}
	defer h.coordinator.Disconnect(conn)

	h.logger.Info("client connected",
		logger.ConnectionID(conn.ID()),
		logger.UserID(userID))

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(sock, done)

	h.readLoop(ctx, conn, sock)

	h.logger.Info("client disconnected",
		logger.ConnectionID(conn.ID()),
		logger.UserID(userID))
}

// authenticate extracts the token from the request and resolves it through
// the verifier.
func (h *Handler) authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get(h.tokenParam)
	if token == "" {
		return "", ErrMissingToken
	}
	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if userID == "" {
		return "", ErrAuthFailed
	}
	return userID, nil
}

// keepalive sends protocol pings until the connection goes away.
func (h *Handler) keepalive(sock *socket, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}

// readLoop consumes client frames. Exiting the loop ends the connection.
func (h *Handler) readLoop(ctx context.Context, conn *registry.Connection, sock *socket) {
	sock.conn.SetReadLimit(h.maxMessageSize)
	_ = sock.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	sock.conn.SetPongHandler(func(string) error {
		conn.Touch()
		return sock.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		msgType, data, err := sock.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("read failed",
					logger.ConnectionID(conn.ID()),
					logger.Error(err))
			}
			return
		}
		_ = sock.conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.Touch()

		if msgType != websocket.TextMessage {
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.replyError(conn, "malformed_frame", "frame is not valid JSON")
			continue
		}
		h.dispatch(ctx, conn, frame)
	}
}
