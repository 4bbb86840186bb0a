package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	notifications map[Scope][]Notification
	mu            sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[Scope][]Notification),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return ErrMissingID
	}
	if notif.UserID == "" {
		return ErrMissingUserID
	}
	if notif.TenantID == "" {
		return ErrMissingTenantID
	}

	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	scope := Scope{TenantID: notif.TenantID, UserID: notif.UserID}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[scope] = append(s.notifications[scope], notif)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, scope Scope, notifID string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[scope] {
		if n.ID == notifID {
			// Return a copy to prevent external mutation of stored data.
			notif := n
			return &notif, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) List(ctx context.Context, scope Scope, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Notification
	for _, n := range s.notifications[scope] {
		if opts.OnlyUnread && n.Read {
			continue
		}

		if len(opts.Types) > 0 {
			found := false
			for _, t := range opts.Types {
				if n.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}

		filtered = append(filtered, n)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(filtered) {
		return []Notification{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end], nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, scope Scope, notifID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications := s.notifications[scope]
	for i := range notifications {
		if notifications[i].ID == notifID {
			return notifications[i].MarkAsRead(), nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, scope Scope, notifIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications, exists := s.notifications[scope]
	if !exists {
		return nil
	}

	idMap := make(map[string]bool, len(notifIDs))
	for _, id := range notifIDs {
		idMap[id] = true
	}

	var kept []Notification
	for _, n := range notifications {
		if !idMap[n.ID] {
			kept = append(kept, n)
		}
	}

	s.notifications[scope] = kept
	return nil
}

func (s *MemoryStorage) Count(ctx context.Context, scope Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications[scope]), nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, scope Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[scope] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
