package broker

import (
	"sync"
)

// Connection is one authenticated realtime session. It is created by the
// broker on Connect and destroyed on Disconnect or broker shutdown; it is
// never persisted.
type Connection struct {
	id       string
	userID   string
	tenantID string
	rooms    []string

	events chan Envelope
	mu     sync.RWMutex
	closed bool
}

func newConnection(id, userID, tenantID string, rooms []string, bufferSize int) *Connection {
	return &Connection{
		id:       id,
		userID:   userID,
		tenantID: tenantID,
		rooms:    rooms,
		events:   make(chan Envelope, bufferSize),
	}
}

// ID returns the opaque connection identifier, unique per transport link.
func (c *Connection) ID() string { return c.id }

// UserID returns the authenticated user this connection belongs to.
func (c *Connection) UserID() string { return c.userID }

// TenantID returns the tenant this connection belongs to.
func (c *Connection) TenantID() string { return c.tenantID }

// Rooms returns the room memberships assigned at connect time.
func (c *Connection) Rooms() []string {
	rooms := make([]string, len(c.rooms))
	copy(rooms, c.rooms)
	return rooms
}

// Events returns the channel on which emitted envelopes arrive. The channel
// is closed when the connection is disconnected.
func (c *Connection) Events() <-chan Envelope { return c.events }

// send delivers an envelope without blocking. It reports false when the
// connection is closed or its buffer is full; a full buffer drops the event
// rather than stalling the emit, the next poll cycle repairs the gap.
func (c *Connection) send(env Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.events <- env:
		return true
	default:
		return false
	}
}

// close is idempotent and safe to race against in-flight sends: send holds
// the read lock, so an emit either completes before the channel closes or
// observes the closed flag and skips the connection.
func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.events)
	}
}
