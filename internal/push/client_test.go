package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	path   string
	body   map[string]any
}

func newPushStub(t *testing.T, status int) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recordedCall{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestClient_Disabled(t *testing.T) {
	req := require.New(t)
	c := NewClient("")
	req.False(c.Enabled())
	req.NoError(c.Subscribe(context.Background(), "u", PushSubscription{}))
	req.NoError(c.Unsubscribe(context.Background(), "u", "https://push.example/1"))
	c.Notify(context.Background(), "u", "t", "b", nil)
}

func TestClient_RoundTrip(t *testing.T) {
	req := require.New(t)
	srv, calls := newPushStub(t, http.StatusNoContent)
	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	sub := PushSubscription{Endpoint: "https://push.example/1"}
	sub.Keys.P256dh, sub.Keys.Auth = "p", "a"
	req.NoError(c.Subscribe(ctx, "alice", sub))
	req.NoError(c.Unsubscribe(ctx, "alice", sub.Endpoint))
	c.Notify(ctx, "bob", "general", "hi", map[string]string{"roomId": "r1"})

	got := calls()
	req.Len(got, 3)
	req.Equal(http.MethodPost, got[0].method)
	req.Equal("/api/subscribe", got[0].path)
	req.Equal("alice", got[0].body["user_id"])
	req.Equal(http.MethodDelete, got[1].method)
	req.Equal(sub.Endpoint, got[1].body["endpoint"])
	req.Equal("/api/notify", got[2].path)
	req.Equal("general", got[2].body["title"])
	req.Equal(map[string]any{"roomId": "r1"}, got[2].body["data"])
}

func TestClient_UnexpectedStatus(t *testing.T) {
	req := require.New(t)
	srv, _ := newPushStub(t, http.StatusInternalServerError)
	err := NewClient(srv.URL).Subscribe(context.Background(), "alice", PushSubscription{})
	req.ErrorContains(err, "status 500")
}
