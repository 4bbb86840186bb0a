package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/farmdesk/notify/pkg/broker"
	"github.com/farmdesk/notify/pkg/gateway"
	"github.com/farmdesk/notify/pkg/logger"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait so a healthy client always
	// answers in time.
	pingPeriod = (pongWait * 9) / 10
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Service is the websocket push transport. It authenticates the handshake
// before upgrading, then streams broker envelopes to the client until either
// side closes the link.
type Service struct {
	gateway  *gateway.Gateway
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewService creates the realtime websocket service on top of the gateway.
func NewService(gw *gateway.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gw,
		log:     slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The token in the handshake is the access control; browsers
			// connect from the app origin or native clients with none.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handleSocket authenticates the token query parameter and upgrades the
// request. A failed handshake is rejected with 401 before any upgrade
// happens, so the transport is never left half-open.
func (s *Service) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.gateway.AuthenticateToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		reason := "authentication failed"
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		writeError(w, http.StatusUnauthorized, reason)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response; undo the enrollment.
		s.gateway.Disconnect(r.Context(), conn)
		s.log.LogAttrs(r.Context(), slog.LevelWarn, "Websocket upgrade failed",
			logger.UserID(conn.UserID()),
			logger.Error(err),
		)
		return
	}

	go s.writePump(conn, ws)
	s.readPump(conn, ws)
}

// writePump streams broker envelopes to the client and keeps the link alive
// with periodic pings. It exits when the connection's event channel closes.
func (s *Service) writePump(conn *broker.Connection, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case env, ok := <-conn.Events():
			if !ok {
				// Disconnected: tell the client before dropping the link.
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames to detect a dead or departed client.
// Clients never send data frames; anything readable is drained and ignored.
func (s *Service) readPump(conn *broker.Connection, ws *websocket.Conn) {
	defer func() {
		s.gateway.Disconnect(context.Background(), conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
