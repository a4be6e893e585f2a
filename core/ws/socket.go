package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// socket adapts a gorilla connection to registry.Socket. The registry
// connection serializes Write calls, satisfying gorilla's single-writer
// requirement; control frames go through WriteControl, which is safe
// concurrently.
type socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (s *socket) Write(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *socket) Close() error {
	return s.conn.Close()
}

func (s *socket) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

func (s *socket) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
	_ = s.conn.Close()
}
