package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/farmdesk/notify/pkg/gateway"
	"github.com/farmdesk/notify/pkg/logger"
	notif "github.com/farmdesk/notify/pkg/notifications"
)

// DefaultPageSize bounds the listing endpoint when the caller does not ask
// for a specific page size.
const DefaultPageSize = 20

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID   string
	TenantID string
}

type identityCtxKey struct{}

// IdentityFromContext retrieves the authenticated caller placed in the
// request context by the module's auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

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

// WithPageSize overrides the default listing page size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Service exposes the notification store over HTTP: a pull listing and a
// mark-read mutation, both scoped to the authenticated caller.
type Service struct {
	manager  *notif.Manager
	verifier *gateway.Verifier
	log      *slog.Logger
	pageSize int
}

// NewService creates the notification HTTP service. The verifier validates
// bearer tokens on every request.
func NewService(manager *notif.Manager, verifier *gateway.Verifier, opts ...Option) *Service {
	s := &Service{
		manager:  manager,
		verifier: verifier,
		log:      slog.Default(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type listResponse struct {
	Notifications []notif.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	Total         int                  `json:"total"`
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	IsRead         *bool  `json:"isRead,omitempty"`
}

type markReadResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// withIdentity authenticates the request from its Authorization header and
// stores the resulting Identity in the context. Requests without a valid
// bearer token are rejected with 401.
func (s *Service) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		creds, err := s.verifier.Verify(token)
		if err != nil || creds.UserID == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		tenantID := creds.TenantID
		if tenantID == "" {
			tenantID = gateway.DefaultTenant
		}

		id := Identity{UserID: creds.UserID, TenantID: tenantID}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityCtxKey{}, id)))
	})
}

// handleList serves the pull listing: a page of the caller's notifications
// sorted newest first, plus the unread count and the total.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	scope := notif.Scope{TenantID: id.TenantID, UserID: id.UserID}

	opts := notif.ListOptions{Limit: s.pageSize}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Offset = n
		}
	}
	if v := r.URL.Query().Get("unread"); v == "true" {
		opts.OnlyUnread = true
	}

	list, err := s.manager.List(r.Context(), scope, opts)
	if err != nil {
		s.storageError(r.Context(), w, err)
		return
	}
	unread, err := s.manager.CountUnread(r.Context(), scope)
	if err != nil {
		s.storageError(r.Context(), w, err)
		return
	}
	total, err := s.manager.Count(r.Context(), scope)
	if err != nil {
		s.storageError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Notifications: list,
		UnreadCount:   unread,
		Total:         total,
	})
}

// handleMarkRead applies the mark-read mutation. Success reflects whether a
// record was actually modified: false when the id does not exist in the
// caller's scope or was already read. The read flag only ever moves from
// unread to read, so a request asking for isRead=false never modifies
// anything.
func (s *Service) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NotificationID == "" {
		writeError(w, http.StatusBadRequest, "notificationId is required")
		return
	}
	if req.IsRead != nil && !*req.IsRead {
		writeJSON(w, http.StatusOK, markReadResponse{Success: false})
		return
	}

	scope := notif.Scope{TenantID: id.TenantID, UserID: id.UserID}
	modified, err := s.manager.MarkRead(r.Context(), scope, req.NotificationID)
	if err != nil {
		if errors.Is(err, notif.ErrNotificationNotFound) {
			writeJSON(w, http.StatusOK, markReadResponse{Success: false})
			return
		}
		s.storageError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, markReadResponse{Success: modified})
}

func (s *Service) storageError(ctx context.Context, w http.ResponseWriter, err error) {
	s.log.LogAttrs(ctx, slog.LevelError, "Notification storage request failed", logger.Error(err))
	writeError(w, http.StatusInternalServerError, "notification storage unavailable")
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
