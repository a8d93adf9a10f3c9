package matchmaking

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Connection is the hub's view of one live socket.
type Connection struct {
	ID           string
	State        State
	Criteria     Criteria
	SessionID    string
	RegisteredAt time.Time

	peer     Peer
	searched bool
	lastPeer string
}

// Registry tracks live connections. Mutations happen on the hub goroutine;
// the counters may be read from anywhere.
type Registry struct {
	conns map[string]*Connection

	online    atomic.Int64
	searching atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add inserts c. The caller must have removed any previous entry for c.ID.
func (r *Registry) Add(c *Connection) error {
	if _, exists := r.conns[c.ID]; exists {
		return fmt.Errorf("register %s: %w", c.ID, ErrDuplicateConnection)
	}
	r.conns[c.ID] = c
	r.online.Add(1)
	if c.State == StateSearching {
		r.searching.Add(1)
	}
	return nil
}

func (r *Registry) Get(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Remove deletes the entry for id and returns it.
func (r *Registry) Remove(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	r.online.Add(-1)
	if c.State == StateSearching {
		r.searching.Add(-1)
	}
	return c, true
}

// Transition moves c to the given state, keeping the searching counter in step.
func (r *Registry) Transition(c *Connection, to State) error {
	if c.State == to {
		return nil
	}
	if !CanTransition(c.State, to) {
		return fmt.Errorf("%s -> %s: %w", c.State, to, ErrInvalidState)
	}
	if c.State == StateSearching {
		r.searching.Add(-1)
	}
	if to == StateSearching {
		r.searching.Add(1)
	}
	c.State = to
	return nil
}

func (r *Registry) OnlineCount() int64 {
	return r.online.Load()
}

func (r *Registry) SearchingCount() int64 {
	return r.searching.Load()
}

func (r *Registry) each(fn func(*Connection)) {
	for _, c := range r.conns {
		fn(c)
	}
}
