package client

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/farmdesk/notify/pkg/async"
	"github.com/farmdesk/notify/pkg/logger"
	"github.com/farmdesk/notify/pkg/notifications"
)

// DefaultPollInterval is the default period of the polling fallback.
const DefaultPollInterval = 30 * time.Second

// Config holds sync engine tunables loaded from the environment.
type Config struct {
	PollInterval time.Duration `env:"CLIENT_POLL_INTERVAL" envDefault:"30s"` // PollInterval is the period of the polling fallback.
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for the engine.
func WithEngineLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithPollInterval sets the polling period.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithToastQueue attaches a toast queue. Genuinely new push events are
// enqueued for display; poll merges and duplicates are not.
func WithToastQueue(q *ToastQueue) EngineOption {
	return func(e *Engine) { e.toasts = q }
}

// Engine merges the push and poll notification sources into one
// deduplicated local view with an accurate unread count. One engine
// instance belongs to exactly one session; state is never shared.
type Engine struct {
	fetcher  Fetcher
	toasts   *ToastQueue
	log      *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*notifications.Notification
	unread  int
	pullSeq uint64
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a sync engine over the given fetcher.
func NewEngine(fetcher Fetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		log:      slog.Default(),
		interval: DefaultPollInterval,
		entries:  make(map[string]*notifications.Notification),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start activates the polling task: an immediate pull followed by one pull
// per interval. Starting an active engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return
	}
	e.active = true

	pollCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()

	go e.pollLoop(pollCtx, done)
}

// Stop deactivates the engine: the polling task is cancelled, any in-flight
// pull result is discarded, and pending toast timers are cleared. No
// recurring work survives teardown.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	// Bumping the sequence invalidates any pull already on the wire.
	e.pullSeq++
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	cancel()
	<-done

	if e.toasts != nil {
		e.toasts.Clear()
	}
}

func (e *Engine) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := e.Pull(ctx); err != nil && ctx.Err() == nil {
		e.log.LogAttrs(ctx, slog.LevelWarn, "Notification pull failed", logger.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Pull(ctx); err != nil && ctx.Err() == nil {
				e.log.LogAttrs(ctx, slog.LevelWarn, "Notification pull failed", logger.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// OnPush merges one push event into the local view. Events already known by
// id are dropped; notification content is immutable after creation, so
// there is nothing to overwrite. A genuinely new event is also enqueued as
// a toast when a queue is attached.
func (e *Engine) OnPush(n notifications.Notification) {
	e.mu.Lock()
	added := e.merge(n)
	e.mu.Unlock()

	if added && e.toasts != nil {
		e.toasts.Enqueue(ToastFromNotification(n))
	}
}

// Pull fetches the current listing page and merges it into the local view.
// On transport failure the existing view is left untouched and the error is
// surfaced as retryable. A response that arrives after the engine was
// stopped, or after a newer pull started, is discarded.
func (e *Engine) Pull(ctx context.Context) error {
	e.mu.Lock()
	e.pullSeq++
	seq := e.pullSeq
	e.mu.Unlock()

	result, err := e.fetcher.List(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.pullSeq {
		// Stale response: a newer pull superseded this one or the engine
		// was deactivated while the request was in flight.
		return nil
	}
	if err != nil {
		return errors.Join(ErrTransport, err)
	}

	for _, n := range result.Notifications {
		e.merge(n)
	}
	return nil
}

// merge inserts or reconciles one notification keyed by id. Only the read
// flag can change, and only false to true; an optimistically read local
// entry is never reverted by remote state. Reports whether the entry was
// new. Callers must hold e.mu.
func (e *Engine) merge(n notifications.Notification) bool {
	if existing, ok := e.entries[n.ID]; ok {
		if n.Read && !existing.Read {
			existing.Read = true
			existing.ReadAt = n.ReadAt
			e.decrementUnread()
		}
		return false
	}

	entry := n
	e.entries[n.ID] = &entry
	if !n.Read {
		e.unread++
	}
	return true
}

// MarkAsRead optimistically marks the local entry as read and decrements
// the unread counter before issuing the remote mutation. A remote failure
// is logged and returned but the optimistic local state is not rolled back;
// the next poll reconciles against the store.
func (e *Engine) MarkAsRead(ctx context.Context, notifID string) error {
	e.mu.Lock()
	if entry, ok := e.entries[notifID]; ok && entry.MarkAsRead() {
		e.decrementUnread()
	}
	e.mu.Unlock()

	if _, err := e.fetcher.MarkRead(ctx, notifID); err != nil {
		e.log.LogAttrs(ctx, slog.LevelWarn, "Failed to mark notification as read remotely",
			logger.NotificationID(notifID),
			logger.Error(err),
		)
		return errors.Join(ErrTransport, err)
	}
	return nil
}

// MarkAllAsRead applies MarkAsRead to every currently-unread entry as a set
// of independent concurrent mutations. A failed mutation does not abort the
// others; each failure is logged independently and the combined error is
// reported as a partial bulk failure.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, e.unread)
	for id, entry := range e.entries {
		if entry.MarkAsRead() {
			e.decrementUnread()
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	futures := make(map[string]*async.Future[bool], len(ids))
	for _, id := range ids {
		futures[id] = async.Async(ctx, id, func(ctx context.Context, notifID string) (bool, error) {
			return e.fetcher.MarkRead(ctx, notifID)
		})
	}

	failed := 0
	for id, future := range futures {
		if _, err := future.Await(); err != nil {
			failed++
			e.log.LogAttrs(ctx, slog.LevelWarn, "Failed to mark notification as read remotely",
				logger.NotificationID(id),
				logger.Error(err),
			)
		}
	}

	if failed > 0 {
		return ErrPartialBulkFailure
	}
	return nil
}

// Notifications returns the merged local view, newest first.
func (e *Engine) Notifications() []notifications.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := make([]notifications.Notification, 0, len(e.entries))
	for _, entry := range e.entries {
		list = append(list, *entry)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// UnreadCount returns the number of unread entries in the local view.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// decrementUnread floors the counter at zero. Callers must hold e.mu.
func (e *Engine) decrementUnread() {
	if e.unread > 0 {
		e.unread--
	}
}
