package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmdesk/notify/pkg/logger"
)

// UserRoom returns the room name holding every session of one user.
func UserRoom(userID string) string { return "user:" + userID }

// TenantRoom returns the room name holding every session of a tenant.
func TenantRoom(tenantID string) string { return "tenant:" + tenantID }

// Config holds broker tunables loaded from the environment.
type Config struct {
	BufferSize int `env:"BROKER_BUFFER_SIZE" envDefault:"64"` // BufferSize is the per-connection event buffer.
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger for the broker.
func WithLogger(log *slog.Logger) Option {
	return func(b *Broker) {
		if log != nil {
			b.log = log
		}
	}
}

// WithBufferSize sets the per-connection event buffer size.
// A minimum of 1 is enforced so sends stay non-blocking.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		b.bufferSize = max(n, 1)
	}
}

// room groups the connections enrolled under one name. Membership mutation
// and emit iteration synchronize on the room's own lock, so independent
// rooms never block each other.
type room struct {
	name  string
	mu    sync.RWMutex
	conns map[string]*Connection
}

// Broker is the connection registry and multicast fan-out. It is an
// explicitly constructed value owned by the process's service scope; there
// is no package-level instance.
type Broker struct {
	bufferSize int
	log        *slog.Logger

	mu     sync.RWMutex
	rooms  map[string]*room
	conns  map[string]*Connection
	closed bool
}

// New creates a broker. Call Close to disconnect every connection and
// release the registry.
func New(opts ...Option) *Broker {
	b := &Broker{
		bufferSize: 64,
		log:        slog.Default(),
		rooms:      make(map[string]*room),
		conns:      make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromConfig creates a broker from the provided Config.
func NewFromConfig(cfg Config, opts ...Option) *Broker {
	return New(append([]Option{WithBufferSize(cfg.BufferSize)}, opts...)...)
}

// Connect registers a new connection and enrolls it in the given rooms.
// Enrollment completes before Connect returns: an emit issued after Connect
// is guaranteed to see the connection.
func (b *Broker) Connect(userID, tenantID string, rooms ...string) (*Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	conn := newConnection(uuid.New().String(), userID, tenantID, rooms, b.bufferSize)
	b.conns[conn.id] = conn

	for _, name := range rooms {
		r, ok := b.rooms[name]
		if !ok {
			r = &room{name: name, conns: make(map[string]*Connection)}
			b.rooms[name] = r
		}
		r.mu.Lock()
		r.conns[conn.id] = conn
		r.mu.Unlock()
	}

	return conn, nil
}

// Disconnect removes the connection from all of its rooms and closes its
// event channel. Removal takes each room's write lock, so a concurrent emit
// either still reaches the connection or skips it entirely; there is no
// half-applied state. Disconnecting an unknown connection is a no-op.
func (b *Broker) Disconnect(conn *Connection) {
	if conn == nil {
		return
	}

	b.mu.Lock()
	if _, ok := b.conns[conn.id]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.conns, conn.id)

	for _, name := range conn.rooms {
		if r, ok := b.rooms[name]; ok {
			r.mu.Lock()
			delete(r.conns, conn.id)
			empty := len(r.conns) == 0
			r.mu.Unlock()
			if empty {
				delete(b.rooms, name)
			}
		}
	}
	b.mu.Unlock()

	conn.close()
}

// EmitToUser delivers the payload to every live connection in the user's
// room. An empty room is a logged no-op, never an error.
func (b *Broker) EmitToUser(ctx context.Context, userID string, payload Payload) error {
	return b.emit(ctx, UserRoom(userID), payload)
}

// EmitToTenant delivers the payload to every live connection in the
// tenant's room.
func (b *Broker) EmitToTenant(ctx context.Context, tenantID string, payload Payload) error {
	return b.emit(ctx, TenantRoom(tenantID), payload)
}

// BroadcastAll delivers the payload to every live connection regardless of
// room membership.
func (b *Broker) BroadcastAll(ctx context.Context, payload Payload) error {
	if payload == nil {
		return ErrNilPayload
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}

	env := Envelope{Payload: payload, Timestamp: time.Now()}
	for _, conn := range b.conns {
		if !conn.send(env) {
			b.logDrop(ctx, conn, payload)
		}
	}
	return nil
}

func (b *Broker) emit(ctx context.Context, roomName string, payload Payload) error {
	if payload == nil {
		return ErrNilPayload
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	r, ok := b.rooms[roomName]
	b.mu.RUnlock()

	if !ok {
		// Delivery miss: durability is the store's job, the poll path repairs.
		b.log.LogAttrs(ctx, slog.LevelDebug, "No live connections in room, event dropped",
			logger.Room(roomName),
			logger.EventType(string(payload.Kind())),
		)
		return nil
	}

	env := Envelope{Payload: payload, Timestamp: time.Now()}

	// Holding the room read lock for the whole iteration keeps membership
	// changes atomic with respect to this emit.
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.conns) == 0 {
		b.log.LogAttrs(ctx, slog.LevelDebug, "No live connections in room, event dropped",
			logger.Room(roomName),
			logger.EventType(string(payload.Kind())),
		)
		return nil
	}

	for _, conn := range r.conns {
		if !conn.send(env) {
			b.logDrop(ctx, conn, payload)
		}
	}
	return nil
}

func (b *Broker) logDrop(ctx context.Context, conn *Connection, payload Payload) {
	b.log.LogAttrs(ctx, slog.LevelWarn, "Dropped event for slow or closed connection",
		logger.ConnectionID(conn.id),
		logger.UserID(conn.userID),
		logger.EventType(string(payload.Kind())),
	)
}

// RoomSize returns the number of live connections in a room.
func (b *Broker) RoomSize(roomName string) int {
	b.mu.RLock()
	r, ok := b.rooms[roomName]
	b.mu.RUnlock()

	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ConnectionCount returns the total number of live connections.
func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close disconnects every connection and marks the broker closed. It is
// safe to call multiple times; subsequent Connect and emit calls return
// ErrBrokerClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	conns := make([]*Connection, 0, len(b.conns))
	for _, conn := range b.conns {
		conns = append(conns, conn)
	}
	clear(b.conns)
	clear(b.rooms)
	b.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	return nil
}
