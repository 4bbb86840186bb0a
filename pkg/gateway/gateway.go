package gateway

import (
	"context"
	"log/slog"

	"github.com/farmdesk/notify/pkg/broker"
	"github.com/farmdesk/notify/pkg/logger"
)

// DefaultTenant is used when the handshake omits a tenant id.
const DefaultTenant = "demo-farm"

// Credentials is the handshake payload. UserID is required; TenantID
// defaults to DefaultTenant when empty.
type Credentials struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId,omitempty"`
}

// RoomsFor computes the room memberships for an authenticated session:
// always exactly the user room and the tenant room.
func RoomsFor(userID, tenantID string) []string {
	return []string{broker.UserRoom(userID), broker.TenantRoom(tenantID)}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithVerifier sets the token verifier used by AuthenticateToken.
func WithVerifier(v *Verifier) Option {
	return func(g *Gateway) { g.verifier = v }
}

// Gateway validates handshake credentials and enrolls accepted connections
// into their rooms on the broker.
type Gateway struct {
	broker   *broker.Broker
	verifier *Verifier
	log      *slog.Logger
}

// New creates a gateway bound to the given broker.
func New(b *broker.Broker, opts ...Option) *Gateway {
	g := &Gateway{
		broker: b,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate validates the credentials and, on success, registers a
// connection already enrolled in its user and tenant rooms. Enrollment is
// synchronous: once Authenticate returns, an emit to either room reaches
// the new connection.
func (g *Gateway) Authenticate(ctx context.Context, creds Credentials) (*broker.Connection, error) {
	if creds.UserID == "" {
		return nil, &AuthError{Reason: "missing userId"}
	}

	tenantID := creds.TenantID
	if tenantID == "" {
		tenantID = DefaultTenant
	}

	conn, err := g.broker.Connect(creds.UserID, tenantID, RoomsFor(creds.UserID, tenantID)...)
	if err != nil {
		return nil, err
	}

	g.log.LogAttrs(ctx, slog.LevelInfo, "Realtime connection established",
		logger.ConnectionID(conn.ID()),
		logger.UserID(creds.UserID),
		logger.TenantID(tenantID),
	)
	return conn, nil
}

// AuthenticateToken parses a signed handshake token and authenticates the
// credentials it carries. It requires a configured Verifier.
func (g *Gateway) AuthenticateToken(ctx context.Context, token string) (*broker.Connection, error) {
	if g.verifier == nil {
		return nil, &AuthError{Reason: "token authentication is not configured"}
	}

	creds, err := g.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	return g.Authenticate(ctx, creds)
}

// Disconnect removes the connection from its rooms and closes it.
func (g *Gateway) Disconnect(ctx context.Context, conn *broker.Connection) {
	if conn == nil {
		return
	}

	g.broker.Disconnect(conn)
	g.log.LogAttrs(ctx, slog.LevelInfo, "Realtime connection closed",
		logger.ConnectionID(conn.ID()),
		logger.UserID(conn.UserID()),
		logger.TenantID(conn.TenantID()),
	)
}
