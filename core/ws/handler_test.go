package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulsar/core/envelope"
	"github.com/dmitrymomot/pulsar/core/registry"
	"github.com/dmitrymomot/pulsar/core/ws"
)

// stubCoordinator records lifecycle calls and satisfies ws.Coordinator.
type stubCoordinator struct {
	mu            sync.Mutex
	connected     []*registry.Connection
	disconnected  []*registry.Connection
	snapshotCalls int
}

func (c *stubCoordinator) Connect(_ context.Context, conn *registry.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = append(c.connected, conn)
	return nil
}

func (c *stubCoordinator) Disconnect(conn *registry.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = append(c.disconnected, conn)
	_ = conn.Close()
}

func (c *stubCoordinator) PushSnapshot(context.Context, *registry.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotCalls++
}

func (c *stubCoordinator) Stats() registry.Stats {
	return registry.Stats{ActiveConnections: 3, ConnectedUsers: 2}
}

func (c *stubCoordinator) lastConnection() *registry.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.connected) == 0 {
		return nil
	}
	return c.connected[len(c.connected)-1]
}

func (c *stubCoordinator) snapshots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotCalls
}

// stubVerifier accepts the token "valid" for user-1.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "valid" {
		return "user-1", nil
	}
	return "", ws.ErrAuthFailed
}

type stubMarker struct {
	mu     sync.Mutex
	marked []string
}

func (m *stubMarker) MarkRead(_ context.Context, userID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, userID+"/"+notificationID)
	return nil
}

func newTestServer(t *testing.T, coord *stubCoordinator, opts ...ws.HandlerOption) *httptest.Server {
	t.Helper()
	handler := ws.NewHandler(coord, stubVerifier{}, opts...)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := envelope.Decode(data)
	require.NoError(t, err)
	return env
}

func writeFrame(t *testing.T, conn *websocket.Conn, frameType string, payload any) {
	t.Helper()
	frame := map[string]any{"type": frameType}
	if payload != nil {
		frame["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(frame))
}

func TestHandlerAuth(t *testing.T) {
	t.Parallel()

	t.Run("missing token closes with auth code", func(t *testing.T) {
		t.Parallel()

		coord := &stubCoordinator{}
		srv := newTestServer(t, coord)

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err, "upgrade succeeds so the close code is readable")
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, ws.CloseAuthFailed, closeErr.Code)
		assert.Nil(t, coord.lastConnection())
	})

	t.Run("bad token closes with auth code", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=wrong"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, ws.CloseAuthFailed, closeErr.Code)
	})

	t.Run("valid token connects and disconnect follows close", func(t *testing.T) {
		t.Parallel()

		coord := &stubCoordinator{}
		srv := newTestServer(t, coord)
		conn := dial(t, srv, "valid")

		require.Eventually(t, func() bool {
			return coord.lastConnection() != nil
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "user-1", coord.lastConnection().UserID())

		require.NoError(t, conn.Close())
		require.Eventually(t, func() bool {
			coord.mu.Lock()
			defer coord.mu.Unlock()
			return len(coord.disconnected) == 1
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestHandlerFrames(t *testing.T) {
	t.Parallel()

	t.Run("ping gets a pong envelope", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "ping", nil)
		env := readEnvelope(t, conn)
		assert.Equal(t, envelope.TypePong, env.Type)
		assert.Equal(t, "user-1", env.UserID)
	})

	t.Run("subscribe narrows the topic set", func(t *testing.T) {
		t.Parallel()

		coord := &stubCoordinator{}
		srv := newTestServer(t, coord)
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "subscribe", map[string]any{"topics": []string{"budget_alert"}})
		// Round-trip a ping to know the subscribe frame was processed.
		writeFrame(t, conn, "ping", nil)
		readEnvelope(t, conn)

		registered := coord.lastConnection()
		require.NotNil(t, registered)
		assert.True(t, registered.Wants("budget_alert"))
		assert.False(t, registered.Wants("notification"))

		writeFrame(t, conn, "unsubscribe", map[string]any{"topics": []string{"budget_alert"}})
		writeFrame(t, conn, "ping", nil)
		readEnvelope(t, conn)
		assert.True(t, registered.Wants("notification"), "emptied set receives everything")
	})

	t.Run("dashboard refresh triggers a snapshot push", func(t *testing.T) {
		t.Parallel()

		coord := &stubCoordinator{}
		srv := newTestServer(t, coord)
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "dashboard_refresh", nil)
		require.Eventually(t, func() bool {
			return coord.snapshots() == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("mark notification read reaches the marker", func(t *testing.T) {
		t.Parallel()

		marker := &stubMarker{}
		srv := newTestServer(t, &stubCoordinator{}, ws.WithNotificationMarker(marker))
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "mark_notification_read", map[string]any{"notification_id": "n-42"})
		require.Eventually(t, func() bool {
			marker.mu.Lock()
			defer marker.mu.Unlock()
			return len(marker.marked) == 1 && marker.marked[0] == "user-1/n-42"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("connection stats frame returns counts", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "get_connection_stats", nil)
		env := readEnvelope(t, conn)
		require.Equal(t, envelope.TypeStats, env.Type)

		payload, err := env.DecodePayload()
		require.NoError(t, err)
		stats := payload.(*envelope.StatsPayload)
		assert.Equal(t, 3, stats.ActiveConnections)
		assert.Equal(t, 2, stats.ConnectedUsers)
	})

	t.Run("unknown frame gets an error envelope, not a disconnect", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "bogus", nil)
		env := readEnvelope(t, conn)
		require.Equal(t, envelope.TypeError, env.Type)

		// Still alive: ping round-trips.
		writeFrame(t, conn, "ping", nil)
		assert.Equal(t, envelope.TypePong, readEnvelope(t, conn).Type)
	})

	t.Run("malformed json gets an error envelope", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		conn := dial(t, srv, "valid")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
		env := readEnvelope(t, conn)
		assert.Equal(t, envelope.TypeError, env.Type)
	})

	t.Run("subscribe without topics gets an error envelope", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubCoordinator{})
		conn := dial(t, srv, "valid")

		writeFrame(t, conn, "subscribe", map[string]any{})
		env := readEnvelope(t, conn)
		assert.Equal(t, envelope.TypeError, env.Type)
	})
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(ws.StatsHandler(&stubCoordinator{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ActiveConnections int `json:"active_connections"`
		ConnectedUsers    int `json:"connected_users"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.ActiveConnections)
	assert.Equal(t, 2, body.ConnectedUsers)
}
