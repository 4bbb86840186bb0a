package notifications

import "errors"

var (
	// ErrNotificationNotFound is returned when a notification is not found in the scope.
	ErrNotificationNotFound = errors.New("notifications: notification not found")

	// ErrMissingID is returned when a notification is stored without an id.
	ErrMissingID = errors.New("notifications: notification ID is required")

	// ErrMissingUserID is returned when a notification is stored without a user id.
	ErrMissingUserID = errors.New("notifications: user ID is required")

	// ErrMissingTenantID is returned when a notification is stored without a tenant id.
	ErrMissingTenantID = errors.New("notifications: tenant ID is required")
)
