package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmdesk/notify/modules/realtime"
	"github.com/farmdesk/notify/pkg/broker"
	"github.com/farmdesk/notify/pkg/gateway"
)

type testStack struct {
	server   *httptest.Server
	broker   *broker.Broker
	verifier *gateway.Verifier
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	b := broker.New()
	t.Cleanup(func() { _ = b.Close() })

	verifier := gateway.NewVerifier("test-secret")
	gw := gateway.New(b, gateway.WithVerifier(verifier))

	r := chi.NewRouter()
	r.Mount("/realtime", realtime.Router(realtime.NewService(gw)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testStack{server: srv, broker: b, verifier: verifier}
}

func (s *testStack) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/realtime/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func (s *testStack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(s.wsURL(token), nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	t.Run("missing token is rejected before upgrade", func(t *testing.T) {
		t.Parallel()
		stack := newTestStack(t)

		resp, err := http.Get(stack.server.URL + "/realtime/ws")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, 0, stack.broker.ConnectionCount(), "rejected handshake must not enroll a connection")
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		t.Parallel()
		stack := newTestStack(t)

		_, resp, err := websocket.DefaultDialer.Dial(stack.wsURL("garbage"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token connects and enrolls", func(t *testing.T) {
		t.Parallel()
		stack := newTestStack(t)

		token, err := stack.verifier.Sign(gateway.Credentials{UserID: "farmer-1", TenantID: "demo-farm"})
		require.NoError(t, err)

		stack.dial(t, token)

		require.Eventually(t, func() bool {
			return stack.broker.RoomSize(broker.UserRoom("farmer-1")) == 1 &&
				stack.broker.RoomSize(broker.TenantRoom("demo-farm")) == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestPushDelivery(t *testing.T) {
	t.Parallel()
	stack := newTestStack(t)

	token, err := stack.verifier.Sign(gateway.Credentials{UserID: "farmer-1", TenantID: "demo-farm"})
	require.NoError(t, err)
	ws := stack.dial(t, token)

	require.NoError(t, stack.broker.EmitToUser(context.Background(), "farmer-1", broker.HealthAlert{
		Title:    "High temperature",
		Message:  "Cow #42 temperature above threshold",
		Priority: broker.PriorityCritical,
		AnimalID: "animal-42",
	}))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.NoError(t, ws.ReadJSON(&event))

	assert.Equal(t, "health_alert", event["type"])
	assert.Equal(t, "High temperature", event["title"])
	assert.Equal(t, "critical", event["priority"])
	assert.Equal(t, "animal-42", event["animalId"])
	assert.NotEmpty(t, event["timestamp"])
}

func TestClientDisconnectTearsDown(t *testing.T) {
	t.Parallel()
	stack := newTestStack(t)

	token, err := stack.verifier.Sign(gateway.Credentials{UserID: "farmer-1", TenantID: "demo-farm"})
	require.NoError(t, err)
	ws := stack.dial(t, token)

	require.Eventually(t, func() bool { return stack.broker.ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	require.Eventually(t, func() bool { return stack.broker.ConnectionCount() == 0 },
		2*time.Second, 10*time.Millisecond, "server side connection not cleaned up")
}
