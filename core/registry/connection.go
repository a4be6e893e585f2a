package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Socket is the transport handle owned by a Connection. Write must deliver
// one whole message; implementations serialize concurrent writers.
type Socket interface {
	Write(data []byte) error
	Close() error
}

// Metadata describes a connection at registration time.
type Metadata struct {
	ClientInfo string
	RemoteAddr string
}

// Connection is a single live client socket with its routing metadata. It is
// owned by the registry entry for its user and destroyed on disconnect,
// write failure, or staleness eviction.
type Connection struct {
	id     string
	userID string
	sock   Socket
	meta   Metadata

	connectedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	topics       map[string]struct{}

	writeMu sync.Mutex
}

// NewConnection wraps a socket for userID. The connection id is generated
// here and stable for the connection's lifetime.
func NewConnection(userID string, sock Socket, meta Metadata) *Connection {
	now := time.Now().UTC()
	return &Connection{
		id:           uuid.New().String(),
		userID:       userID,
		sock:         sock,
		meta:         meta,
		connectedAt:  now,
		lastActivity: now,
		topics:       make(map[string]struct{}),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Meta returns the registration metadata.
func (c *Connection) Meta() Metadata { return c.meta }

// ConnectedAt returns when the connection was established.
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// Send writes one message to the socket. Writes are serialized per
// connection, which is the only ordering guarantee the subsystem makes.
func (c *Connection) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.Write(data)
}

// Close closes the underlying socket. Safe to call multiple times as long as
// the socket tolerates it; gorilla and net.Conn both do.
func (c *Connection) Close() error {
	return c.sock.Close()
}

// Touch records activity, deferring staleness eviction.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
}

// LastActivity returns the most recent activity timestamp.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Subscribe adds topics to the connection's subscription set.
func (c *Connection) Subscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if t != "" {
			c.topics[t] = struct{}{}
		}
	}
}

// Unsubscribe removes topics from the subscription set.
func (c *Connection) Unsubscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.topics, t)
	}
}

// Wants reports whether the connection should receive messages tagged with
// topic. An empty subscription set means the connection receives everything.
func (c *Connection) Wants(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.topics) == 0 {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

// Topics returns a snapshot of the subscription set.
func (c *Connection) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}
