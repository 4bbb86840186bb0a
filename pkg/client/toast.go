package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmdesk/notify/pkg/notifications"
)

// ToastType is the display category of a toast, distinct from the durable
// notification's domain type.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

const (
	// DefaultAutoCloseDelay is how long a toast stays up by default.
	DefaultAutoCloseDelay = 5 * time.Second
	// CriticalAutoCloseDelay applies to toasts derived from critical-priority
	// notifications.
	CriticalAutoCloseDelay = 10 * time.Second
)

// Toast is an ephemeral, session-local display item. It is destroyed on
// expiry or explicit dismissal and never shared across sessions.
type Toast struct {
	ID             string
	Type           ToastType
	Title          string
	Message        string
	AutoClose      bool
	AutoCloseDelay time.Duration
	ExpiresAt      time.Time
}

// NewToast builds a toast with auto-close enabled and the default delay.
func NewToast(typ ToastType, title, message string) Toast {
	return Toast{
		Type:           typ,
		Title:          title,
		Message:        message,
		AutoClose:      true,
		AutoCloseDelay: DefaultAutoCloseDelay,
	}
}

// ToastFromNotification projects a durable notification onto a display
// toast. Critical priority maps to an error toast with the longer delay;
// high maps to a warning; everything else is informational.
func ToastFromNotification(n notifications.Notification) Toast {
	t := Toast{
		ID:             n.ID,
		Title:          n.Title,
		Message:        n.Message,
		AutoClose:      true,
		AutoCloseDelay: DefaultAutoCloseDelay,
	}

	switch n.Priority {
	case notifications.PriorityCritical:
		t.Type = ToastError
		t.AutoCloseDelay = CriticalAutoCloseDelay
	case notifications.PriorityHigh:
		t.Type = ToastWarning
	default:
		t.Type = ToastInfo
	}
	return t
}

// ToastQueue is the transient queue of toasts to display. Items keep
// insertion order; every auto-closing item owns an independent timer.
type ToastQueue struct {
	mu     sync.Mutex
	items  []Toast
	timers map[string]*time.Timer
}

// NewToastQueue creates an empty toast queue.
func NewToastQueue() *ToastQueue {
	return &ToastQueue{
		timers: make(map[string]*time.Timer),
	}
}

// Enqueue appends the toast and, when auto-close is enabled, schedules its
// removal after the item's delay. Each enqueue is independent; there is no
// global debounce. The (possibly generated) toast id is returned.
func (q *ToastQueue) Enqueue(t Toast) string {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.AutoCloseDelay <= 0 {
		t.AutoCloseDelay = DefaultAutoCloseDelay
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if t.AutoClose {
		t.ExpiresAt = time.Now().Add(t.AutoCloseDelay)
		id := t.ID
		q.timers[id] = time.AfterFunc(t.AutoCloseDelay, func() {
			q.Dismiss(id)
		})
	}

	q.items = append(q.items, t)
	return t.ID
}

// Dismiss removes the item immediately regardless of its timer state.
// Dismissing an unknown or already-removed id is a no-op.
func (q *ToastQueue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}

	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Clear removes all items and cancels every pending timer.
func (q *ToastQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.items = nil
}

// Items returns the queued toasts in insertion order.
func (q *ToastQueue) Items() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Toast, len(q.items))
	copy(items, q.items)
	return items
}

// Len returns the number of queued toasts.
func (q *ToastQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
