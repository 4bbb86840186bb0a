package notifications

import (
	"context"
	"time"
)

// Scope identifies whose notifications an operation acts on. Every storage
// operation is bounded by tenant and user; one tenant can never observe
// another tenant's records.
type Scope struct {
	TenantID string
	UserID   string
}

// ListOptions provides filtering and pagination for listing notifications.
// Results are always ordered newest-first by creation time.
type ListOptions struct {
	Limit      int        // Maximum number of notifications to return (0 = no limit)
	Offset     int        // Number of notifications to skip for pagination
	OnlyUnread bool       // When true, only return unread notifications
	Types      []Type     // If specified, only return notifications of these types
	Since      *time.Time // If specified, only return notifications created after this time
}

// Storage handles notification persistence and retrieval.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, notif Notification) error

	// Get retrieves a single notification within the scope.
	Get(ctx context.Context, scope Scope, notifID string) (*Notification, error)

	// List returns notifications for the scope, newest first.
	List(ctx context.Context, scope Scope, opts ListOptions) ([]Notification, error)

	// MarkRead marks a notification as read. It reports whether a matching
	// record was actually modified: false when the id does not exist in the
	// scope or the notification was already read.
	MarkRead(ctx context.Context, scope Scope, notifID string) (bool, error)

	// Delete removes notification(s) within the scope.
	Delete(ctx context.Context, scope Scope, notifIDs ...string) error

	// Count returns the total number of notifications in the scope.
	Count(ctx context.Context, scope Scope) (int, error)

	// CountUnread returns the unread count for the scope.
	CountUnread(ctx context.Context, scope Scope) (int, error)
}
