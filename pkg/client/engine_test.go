package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdesk/notify/pkg/client"
	"github.com/farmdesk/notify/pkg/notifications"
)

type fakeFetcher struct {
	mu        sync.Mutex
	result    client.ListResult
	listErr   error
	listDelay time.Duration
	listCalls int
	markErrs  map[string]error
	marked    []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{markErrs: make(map[string]error)}
}

func (f *fakeFetcher) setResult(result client.ListResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

func (f *fakeFetcher) List(ctx context.Context) (client.ListResult, error) {
	f.mu.Lock()
	f.listCalls++
	delay := f.listDelay
	result := f.result
	err := f.listErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return client.ListResult{}, ctx.Err()
		}
	}
	return result, err
}

func (f *fakeFetcher) MarkRead(ctx context.Context, notifID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, notifID)
	if err, ok := f.markErrs[notifID]; ok {
		return false, err
	}
	return true, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func unreadNotification(id string, created time.Time) notifications.Notification {
	return notifications.Notification{
		ID:        id,
		UserID:    "farmer-1",
		TenantID:  "demo-farm",
		Type:      notifications.TypeGeneral,
		Priority:  notifications.PriorityMedium,
		Title:     "title " + id,
		CreatedAt: created,
	}
}

func TestEngineMerge(t *testing.T) {
	t.Parallel()

	t.Run("push and pull of the same event land exactly once", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		n := unreadNotification("n1", time.Now())
		e.OnPush(n)

		fetcher.setResult(client.ListResult{Notifications: []notifications.Notification{n}, UnreadCount: 1, Total: 1})
		require.NoError(t, e.Pull(context.Background()))

		assert.Len(t, e.Notifications(), 1)
		assert.Equal(t, 1, e.UnreadCount())
	})

	t.Run("duplicate pushes are dropped", func(t *testing.T) {
		t.Parallel()
		e := client.NewEngine(newFakeFetcher())

		n := unreadNotification("n1", time.Now())
		e.OnPush(n)
		e.OnPush(n)

		assert.Len(t, e.Notifications(), 1)
		assert.Equal(t, 1, e.UnreadCount())
	})

	t.Run("listing is newest first", func(t *testing.T) {
		t.Parallel()
		e := client.NewEngine(newFakeFetcher())

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		e.OnPush(unreadNotification("old", base))
		e.OnPush(unreadNotification("new", base.Add(time.Hour)))

		list := e.Notifications()
		require.Len(t, list, 2)
		assert.Equal(t, "new", list[0].ID)
	})

	t.Run("remote read state is applied, remote unread never reverts", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		n := unreadNotification("n1", time.Now())
		e.OnPush(n)
		require.NoError(t, e.MarkAsRead(context.Background(), "n1"))
		assert.Equal(t, 0, e.UnreadCount())

		// Poll still reports the entry as unread; the optimistic local read
		// must win.
		fetcher.setResult(client.ListResult{Notifications: []notifications.Notification{n}})
		require.NoError(t, e.Pull(context.Background()))

		assert.Equal(t, 0, e.UnreadCount())
		assert.True(t, e.Notifications()[0].Read)

		// Reverse direction: remote read is applied to a local unread entry.
		m := unreadNotification("n2", time.Now())
		e.OnPush(m)
		m.Read = true
		now := time.Now()
		m.ReadAt = &now
		fetcher.setResult(client.ListResult{Notifications: []notifications.Notification{m}})
		require.NoError(t, e.Pull(context.Background()))

		assert.Equal(t, 0, e.UnreadCount())
	})

	t.Run("failed pull keeps the local view intact", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		e.OnPush(unreadNotification("n1", time.Now()))

		fetcher.listErr = errors.New("connection refused")
		err := e.Pull(context.Background())
		require.ErrorIs(t, err, client.ErrTransport)

		assert.Len(t, e.Notifications(), 1)
		assert.Equal(t, 1, e.UnreadCount())
	})
}

func TestEngineMarkAsRead(t *testing.T) {
	t.Parallel()

	t.Run("optimistic local mark before remote confirmation", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		e.OnPush(unreadNotification("n1", time.Now()))
		require.NoError(t, e.MarkAsRead(context.Background(), "n1"))

		assert.True(t, e.Notifications()[0].Read)
		assert.Equal(t, 0, e.UnreadCount())
		assert.Equal(t, []string{"n1"}, fetcher.marked)
	})

	t.Run("remote failure is surfaced but not rolled back", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		fetcher.markErrs["n1"] = errors.New("boom")
		e := client.NewEngine(fetcher)

		e.OnPush(unreadNotification("n1", time.Now()))
		err := e.MarkAsRead(context.Background(), "n1")
		require.ErrorIs(t, err, client.ErrTransport)

		assert.True(t, e.Notifications()[0].Read, "optimistic state must survive the failed mutation")
		assert.Equal(t, 0, e.UnreadCount())
	})

	t.Run("unknown id still issues the mutation", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		require.NoError(t, e.MarkAsRead(context.Background(), "ghost"))
		assert.Equal(t, []string{"ghost"}, fetcher.marked)
	})
}

func TestEngineMarkAllAsRead(t *testing.T) {
	t.Parallel()

	t.Run("partial failure marks the rest and reports once", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		fetcher.markErrs["n2"] = errors.New("boom")
		e := client.NewEngine(fetcher)

		base := time.Now()
		e.OnPush(unreadNotification("n1", base))
		e.OnPush(unreadNotification("n2", base.Add(time.Second)))
		e.OnPush(unreadNotification("n3", base.Add(2*time.Second)))

		err := e.MarkAllAsRead(context.Background())
		require.ErrorIs(t, err, client.ErrPartialBulkFailure)

		// Every entry is optimistically read locally and every mutation was
		// attempted despite the failure in the middle.
		for _, n := range e.Notifications() {
			assert.True(t, n.Read)
		}
		assert.Equal(t, 0, e.UnreadCount())
		assert.ElementsMatch(t, []string{"n1", "n2", "n3"}, fetcher.marked)
	})

	t.Run("no unread entries is a no-op", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher)

		require.NoError(t, e.MarkAllAsRead(context.Background()))
		assert.Empty(t, fetcher.marked)
	})
}

func TestEngineLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start polls immediately and stop cancels", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher, client.WithPollInterval(10*time.Millisecond))

		e.Start(context.Background())
		require.Eventually(t, func() bool { return fetcher.calls() >= 2 },
			time.Second, 5*time.Millisecond, "polling never ran")

		e.Stop()
		settled := fetcher.calls()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, settled, fetcher.calls(), "polling survived Stop")
	})

	t.Run("start is idempotent while active", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		e := client.NewEngine(fetcher, client.WithPollInterval(time.Hour))

		e.Start(context.Background())
		e.Start(context.Background())
		e.Stop()
		e.Stop()
	})

	t.Run("in-flight pull result is discarded after stop", func(t *testing.T) {
		t.Parallel()
		fetcher := newFakeFetcher()
		fetcher.setResult(client.ListResult{
			Notifications: []notifications.Notification{unreadNotification("late", time.Now())},
		})
		e := client.NewEngine(fetcher)

		fetcher.listDelay = 50 * time.Millisecond
		pullDone := make(chan error, 1)
		go func() { pullDone <- e.Pull(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		e.Start(context.Background())
		e.Stop()

		require.NoError(t, <-pullDone)
		assert.Empty(t, e.Notifications(), "stale pull result applied after stop")
	})

	t.Run("stop clears the attached toast queue", func(t *testing.T) {
		t.Parallel()
		q := client.NewToastQueue()
		e := client.NewEngine(newFakeFetcher(),
			client.WithPollInterval(time.Hour),
			client.WithToastQueue(q),
		)

		e.Start(context.Background())
		e.OnPush(unreadNotification("n1", time.Now()))
		require.Equal(t, 1, q.Len())

		e.Stop()
		assert.Equal(t, 0, q.Len(), "pending toasts must not survive teardown")
	})
}

func TestEngineToasts(t *testing.T) {
	t.Parallel()

	t.Run("new push enqueues a toast, duplicate does not", func(t *testing.T) {
		t.Parallel()
		q := client.NewToastQueue()
		e := client.NewEngine(newFakeFetcher(), client.WithToastQueue(q))

		n := unreadNotification("n1", time.Now())
		e.OnPush(n)
		e.OnPush(n)

		assert.Equal(t, 1, q.Len())
	})

	t.Run("poll merge never enqueues toasts", func(t *testing.T) {
		t.Parallel()
		q := client.NewToastQueue()
		fetcher := newFakeFetcher()
		fetcher.setResult(client.ListResult{
			Notifications: []notifications.Notification{unreadNotification("n1", time.Now())},
		})
		e := client.NewEngine(fetcher, client.WithToastQueue(q))

		require.NoError(t, e.Pull(context.Background()))
		assert.Equal(t, 0, q.Len())
	})
}
