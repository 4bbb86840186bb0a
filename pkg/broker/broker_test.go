package broker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdesk/notify/pkg/broker"
)

func drain(t *testing.T, conn *broker.Connection, n int) []broker.Envelope {
	t.Helper()
	out := make([]broker.Envelope, 0, n)
	for range n {
		select {
		case env, ok := <-conn.Events():
			require.True(t, ok, "event channel closed early")
			out = append(out, env)
		case <-time.After(time.Second):
			require.Fail(t, "timed out waiting for event")
		}
	}
	return out
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("enrolls connection in its rooms", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		conn, err := b.Connect("farmer-1", "demo-farm",
			broker.UserRoom("farmer-1"), broker.TenantRoom("demo-farm"))
		require.NoError(t, err)

		assert.NotEmpty(t, conn.ID())
		assert.Equal(t, "farmer-1", conn.UserID())
		assert.Equal(t, "demo-farm", conn.TenantID())
		assert.Equal(t, 1, b.RoomSize(broker.UserRoom("farmer-1")))
		assert.Equal(t, 1, b.RoomSize(broker.TenantRoom("demo-farm")))
		assert.Equal(t, 1, b.ConnectionCount())
	})

	t.Run("emit after connect reaches the connection", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		conn, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		require.NoError(t, err)

		require.NoError(t, b.EmitToUser(context.Background(), "farmer-1", broker.General{Title: "hi"}))
		envs := drain(t, conn, 1)
		assert.Equal(t, broker.KindGeneral, envs[0].Payload.Kind())
	})

	t.Run("closed broker rejects connect", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		require.NoError(t, b.Close())

		_, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		assert.ErrorIs(t, err, broker.ErrBrokerClosed)
	})
}

func TestRoomIsolation(t *testing.T) {
	t.Parallel()
	b := broker.New()
	defer b.Close()

	ctx := context.Background()
	alice, err := b.Connect("alice", "farm-a", broker.UserRoom("alice"), broker.TenantRoom("farm-a"))
	require.NoError(t, err)
	bob, err := b.Connect("bob", "farm-b", broker.UserRoom("bob"), broker.TenantRoom("farm-b"))
	require.NoError(t, err)

	require.NoError(t, b.EmitToUser(ctx, "alice", broker.General{Title: "for alice"}))
	require.NoError(t, b.EmitToTenant(ctx, "farm-a", broker.General{Title: "for farm a"}))

	drain(t, alice, 2)

	select {
	case env := <-bob.Events():
		require.Failf(t, "room isolation violated", "bob received %v", env.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitOrdering(t *testing.T) {
	t.Parallel()
	b := broker.New(broker.WithBufferSize(128))
	defer b.Close()

	conn, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
	require.NoError(t, err)

	ctx := context.Background()
	const total = 100
	for i := range total {
		require.NoError(t, b.EmitToUser(ctx, "farmer-1", broker.General{Title: fmt.Sprintf("event-%d", i)}))
	}

	envs := drain(t, conn, total)
	for i, env := range envs {
		general, ok := env.Payload.(broker.General)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("event-%d", i), general.Title, "events delivered out of order")
	}
}

func TestEmitEdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("empty room is a silent no-op", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		assert.NoError(t, b.EmitToUser(context.Background(), "nobody", broker.General{Title: "lost"}))
	})

	t.Run("nil payload is rejected", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		assert.ErrorIs(t, b.EmitToUser(context.Background(), "farmer-1", nil), broker.ErrNilPayload)
		assert.ErrorIs(t, b.BroadcastAll(context.Background(), nil), broker.ErrNilPayload)
	})

	t.Run("slow consumer drops instead of blocking", func(t *testing.T) {
		t.Parallel()
		b := broker.New(broker.WithBufferSize(1))
		defer b.Close()

		conn, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, b.EmitToUser(ctx, "farmer-1", broker.General{Title: "first"}))

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Buffer is full; this must not block the emitter.
			_ = b.EmitToUser(ctx, "farmer-1", broker.General{Title: "second"})
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			require.Fail(t, "emit blocked on a slow consumer")
		}

		envs := drain(t, conn, 1)
		assert.Equal(t, "first", envs[0].Payload.(broker.General).Title)
	})

	t.Run("emit to closed broker", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		require.NoError(t, b.Close())

		assert.ErrorIs(t, b.EmitToUser(context.Background(), "farmer-1", broker.General{}), broker.ErrBrokerClosed)
	})
}

func TestBroadcastAll(t *testing.T) {
	t.Parallel()
	b := broker.New()
	defer b.Close()

	alice, err := b.Connect("alice", "farm-a", broker.UserRoom("alice"))
	require.NoError(t, err)
	bob, err := b.Connect("bob", "farm-b", broker.UserRoom("bob"))
	require.NoError(t, err)

	require.NoError(t, b.BroadcastAll(context.Background(), broker.General{Title: "maintenance"}))

	drain(t, alice, 1)
	drain(t, bob, 1)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("removes membership and closes events", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		conn, err := b.Connect("farmer-1", "demo-farm",
			broker.UserRoom("farmer-1"), broker.TenantRoom("demo-farm"))
		require.NoError(t, err)

		b.Disconnect(conn)

		assert.Equal(t, 0, b.RoomSize(broker.UserRoom("farmer-1")))
		assert.Equal(t, 0, b.RoomSize(broker.TenantRoom("demo-farm")))
		assert.Equal(t, 0, b.ConnectionCount())

		_, ok := <-conn.Events()
		assert.False(t, ok, "event channel should be closed")
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		conn, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		require.NoError(t, err)

		b.Disconnect(conn)
		b.Disconnect(conn)
		b.Disconnect(nil)
	})

	t.Run("does not disturb siblings in the room", func(t *testing.T) {
		t.Parallel()
		b := broker.New()
		defer b.Close()

		tab1, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		require.NoError(t, err)
		tab2, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
		require.NoError(t, err)

		b.Disconnect(tab1)

		require.NoError(t, b.EmitToUser(context.Background(), "farmer-1", broker.General{Title: "still here"}))
		drain(t, tab2, 1)
	})
}

func TestConcurrentConnectDisconnectEmit(t *testing.T) {
	t.Parallel()
	b := broker.New()
	defer b.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i%5)
			conn, err := b.Connect(userID, "demo-farm",
				broker.UserRoom(userID), broker.TenantRoom("demo-farm"))
			if err != nil {
				return
			}
			go func() {
				for range conn.Events() {
				}
			}()
			b.Disconnect(conn)
		}(i)
	}

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.EmitToTenant(ctx, "demo-farm", broker.General{Title: "race"})
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "concurrent connect/disconnect/emit deadlocked")
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	b := broker.New()

	conn, err := b.Connect("farmer-1", "demo-farm", broker.UserRoom("farmer-1"))
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close must be idempotent")

	_, ok := <-conn.Events()
	assert.False(t, ok, "event channel should be closed after broker shutdown")
	assert.Equal(t, 0, b.ConnectionCount())
}
