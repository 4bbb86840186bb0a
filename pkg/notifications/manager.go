package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/farmdesk/notify/pkg/cache"
	"github.com/farmdesk/notify/pkg/logger"
)

const defaultUnreadCacheSize = 10000

// Manager orchestrates notification persistence and best-effort realtime
// delivery. Notifications are always stored before any delivery attempt.
type Manager struct {
	storage   Storage
	deliverer Deliverer
	log       *slog.Logger
	unread    *cache.LRUCache[Scope, int]
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithUnreadCacheSize bounds the unread-count cache. Default is 10,000
// scopes; the least recently used scope is evicted beyond that.
func WithUnreadCacheSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.unread = cache.NewLRUCache[Scope, int](n)
		}
	}
}

// NewManager creates a new notification manager.
func NewManager(storage Storage, deliverer Deliverer, opts ...ManagerOption) *Manager {
	if deliverer == nil {
		deliverer = NoOpDeliverer{}
	}

	m := &Manager{
		storage:   storage,
		deliverer: deliverer,
		log:       slog.Default(),
		unread:    cache.NewLRUCache[Scope, int](defaultUnreadCacheSize),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Send persists the notification and then attempts realtime delivery.
// A delivery failure is logged, never returned: the notification is durable
// and the client's poll path picks it up within the next cycle.
func (m *Manager) Send(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		notif.ID = uuid.New().String()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	if err := m.storage.Create(ctx, notif); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	m.invalidateUnread(notif)

	if err := m.deliverer.Deliver(ctx, notif); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to deliver notification, but it was stored successfully",
			logger.NotificationID(notif.ID),
			logger.UserID(notif.UserID),
			logger.Error(err),
		)
	}

	return nil
}

// SendToUsers persists one copy of the template per user and then attempts
// batch delivery.
func (m *Manager) SendToUsers(ctx context.Context, userIDs []string, template Notification) error {
	notifications := make([]Notification, 0, len(userIDs))

	for _, userID := range userIDs {
		notif := template
		notif.ID = uuid.New().String()
		notif.UserID = userID
		notif.CreatedAt = time.Now()

		if err := m.storage.Create(ctx, notif); err != nil {
			return fmt.Errorf("failed to store notification for user %s: %w", userID, err)
		}
		m.invalidateUnread(notif)

		notifications = append(notifications, notif)
	}

	if err := m.deliverer.DeliverBatch(ctx, notifications); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to deliver notification batch, but they were stored successfully",
			slog.Int("notification_count", len(notifications)),
			logger.Error(err),
		)
	}

	return nil
}

func (m *Manager) Get(ctx context.Context, scope Scope, notifID string) (*Notification, error) {
	return m.storage.Get(ctx, scope, notifID)
}

func (m *Manager) List(ctx context.Context, scope Scope, opts ListOptions) ([]Notification, error) {
	return m.storage.List(ctx, scope, opts)
}

func (m *Manager) Count(ctx context.Context, scope Scope) (int, error) {
	return m.storage.Count(ctx, scope)
}

// MarkRead marks one notification as read. It reports whether a record was
// actually modified: false when the id does not exist in the scope or was
// already read.
func (m *Manager) MarkRead(ctx context.Context, scope Scope, notifID string) (bool, error) {
	modified, err := m.storage.MarkRead(ctx, scope, notifID)
	if err != nil {
		return false, err
	}
	if modified {
		m.unread.Remove(scope)
	}
	return modified, nil
}

// MarkAllRead marks every unread notification in the scope as read.
func (m *Manager) MarkAllRead(ctx context.Context, scope Scope) error {
	notifications, err := m.storage.List(ctx, scope, ListOptions{OnlyUnread: true})
	if err != nil {
		return err
	}

	for _, n := range notifications {
		if _, err := m.storage.MarkRead(ctx, scope, n.ID); err != nil {
			return err
		}
	}

	if len(notifications) > 0 {
		m.unread.Remove(scope)
	}
	return nil
}

func (m *Manager) Delete(ctx context.Context, scope Scope, notifIDs ...string) error {
	if err := m.storage.Delete(ctx, scope, notifIDs...); err != nil {
		return err
	}
	m.unread.Remove(scope)
	return nil
}

// CountUnread returns the unread count for the scope. Counts are served
// from an LRU cache invalidated on every write to the scope.
func (m *Manager) CountUnread(ctx context.Context, scope Scope) (int, error) {
	if count, ok := m.unread.Get(scope); ok {
		return count, nil
	}

	count, err := m.storage.CountUnread(ctx, scope)
	if err != nil {
		return 0, err
	}
	m.unread.Put(scope, count)
	return count, nil
}

// Storage returns the underlying notification storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

// Deliverer returns the underlying notification deliverer.
func (m *Manager) Deliverer() Deliverer {
	return m.deliverer
}

func (m *Manager) invalidateUnread(notif Notification) {
	m.unread.Remove(Scope{TenantID: notif.TenantID, UserID: notif.UserID})
}
