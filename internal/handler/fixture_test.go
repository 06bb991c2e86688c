package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/config"
	"github.com/groupchat/internal/middleware"
	"github.com/groupchat/internal/service"
	"github.com/groupchat/internal/storage/memory"
	"github.com/groupchat/internal/ws"
)

type apiFixture struct {
	srv *httptest.Server
	hub *ws.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.New()
	hub := ws.NewHub(nil, 100, 16)
	gw := service.NewGateway(store, hub, nil)
	hub.SetCommands(gw)
	chat := service.NewChatRooms(store, hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := NewRouter(Deps{
		Config: &config.Config{},
		Rooms:  NewRoomHandler(chat, gw),
		WS:     NewWSHandler(hub, "*"),
		Auth:   middleware.HeaderAuth,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &apiFixture{srv: srv, hub: hub}
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r apiResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dst), string(r.body))
}

func (r apiResponse) errorBody(t *testing.T) errorResponse {
	t.Helper()
	var e errorResponse
	r.decode(t, &e)
	return e
}

// call выполняет запрос от имени user (пустой user — без авторизации).
func (f *apiFixture) call(t *testing.T, method, path, user string, body any) apiResponse {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{status: resp.StatusCode, header: resp.Header, body: raw}
}

// createRoom возвращает roomId из Location.
func (f *apiFixture) createRoom(t *testing.T, owner, title string, members ...string) string {
	t.Helper()
	resp := f.call(t, http.MethodPost, "/api/chat/rooms", owner, map[string]string{"title": title})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	loc := resp.header.Get("Location")
	require.NotEmpty(t, loc)
	roomID := loc[len("/api/chat/rooms/"):]
	for _, m := range members {
		r := f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/members", owner, map[string]string{"memberId": m})
		require.Equal(t, http.StatusOK, r.status, string(r.body))
	}
	return roomID
}
