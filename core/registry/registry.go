package registry

import (
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/pulsar/core/logger"
)

// Stats summarizes current registry occupancy.
type Stats struct {
	ActiveConnections int
	ConnectedUsers    int
	PerUser           map[string]int
}

// Registry is a concurrency-safe map of user id to live connections. The
// zero value is not usable; create one with New.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Connection

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger configures structured logging for the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		users:  make(map[string]map[string]*Connection),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the connection under its user and returns the connection id.
// Registering the same connection twice is a no-op; no duplicate entry is
// created.
func (r *Registry) Register(c *Connection) string {
	if c == nil {
		return ""
	}

	r.mu.Lock()
	conns, ok := r.users[c.UserID()]
	if !ok {
		conns = make(map[string]*Connection)
		r.users[c.UserID()] = conns
	}
	conns[c.ID()] = c
	total := len(conns)
	r.mu.Unlock()

	r.logger.Debug("connection registered",
		logger.ConnectionID(c.ID()),
		logger.UserID(c.UserID()),
		logger.Count("user_connections", total))

	return c.ID()
}

// Unregister removes the connection and prunes the user entry when it was
// the last one. Unknown connections are a no-op, which makes Unregister
// idempotent.
func (r *Registry) Unregister(c *Connection) {
	if c == nil {
		return
	}

	r.mu.Lock()
	conns, ok := r.users[c.UserID()]
	if ok {
		if _, present := conns[c.ID()]; present {
			delete(conns, c.ID())
			if len(conns) == 0 {
				delete(r.users, c.UserID())
			}
		} else {
			ok = false
		}
	}
	r.mu.Unlock()

	if ok {
		r.logger.Debug("connection unregistered",
			logger.ConnectionID(c.ID()),
			logger.UserID(c.UserID()))
	}
}

// Connections returns a point-in-time snapshot of the user's live
// connections, safe to iterate while the registry mutates.
func (r *Registry) Connections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// Users returns the ids of all users with at least one live connection.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Touch records activity on the connection.
func (r *Registry) Touch(c *Connection) {
	if c != nil {
		c.Touch()
	}
}

// Stats returns current occupancy counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{PerUser: make(map[string]int, len(r.users))}
	for id, conns := range r.users {
		s.PerUser[id] = len(conns)
		s.ActiveConnections += len(conns)
	}
	s.ConnectedUsers = len(r.users)
	return s
}

// CloseAll unregisters and closes every connection. Used during shutdown.
func (r *Registry) CloseAll() {
	for _, c := range r.All() {
		r.Unregister(c)
		if err := c.Close(); err != nil {
			r.logger.Debug("close during shutdown failed",
				logger.ConnectionID(c.ID()),
				logger.Error(err))
		}
	}
}
