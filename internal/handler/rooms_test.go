package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/service"
)

func TestRooms_CreateListAndDelete(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	// Given: комната владельца alice с участником bob
	roomID := f.createRoom(t, "alice", "general", "bob")

	// Then: комната видна обоим с правильными ролями
	var aliceRooms []model.MyRoom
	f.call(t, http.MethodGet, "/api/chat/rooms", "alice", nil).decode(t, &aliceRooms)
	req.Len(aliceRooms, 1)
	req.Equal(roomID, aliceRooms[0].RoomID)
	req.Equal(model.RoleOwner, aliceRooms[0].MyRole)
	req.Nil(aliceRooms[0].LastMessageAt)

	var bobRooms []model.MyRoom
	f.call(t, http.MethodGet, "/api/chat/rooms", "bob", nil).decode(t, &bobRooms)
	req.Len(bobRooms, 1)
	req.Equal(model.RoleMember, bobRooms[0].MyRole)

	// When: участник пытается удалить комнату
	resp := f.call(t, http.MethodDelete, "/api/chat/rooms/"+roomID, "bob", nil)
	req.Equal(http.StatusForbidden, resp.status)
	req.Equal(service.ReasonNotOwner, resp.errorBody(t).Reason)

	// When: владелец удаляет дважды
	req.Equal(http.StatusOK, f.call(t, http.MethodDelete, "/api/chat/rooms/"+roomID, "alice", nil).status)
	resp = f.call(t, http.MethodDelete, "/api/chat/rooms/"+roomID, "alice", nil)
	req.Equal(http.StatusConflict, resp.status)
	req.Equal(service.CodeConflict, resp.errorBody(t).Code)

	// Then: история удалённой комнаты — 410, список пуст
	req.Equal(http.StatusGone, f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", "alice", nil).status)
	resp = f.call(t, http.MethodGet, "/api/chat/rooms", "alice", nil)
	req.Equal(http.StatusOK, resp.status)
	req.JSONEq(`[]`, string(resp.body))
}

func TestRooms_RequestErrors(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.createRoom(t, "alice", "general")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   service.Code
	}{
		{"no identity", http.MethodGet, "/api/chat/rooms", "", nil, http.StatusUnauthorized, service.CodeUnauthenticated},
		{"missing title", http.MethodPost, "/api/chat/rooms", "alice", map[string]string{}, http.StatusBadRequest, service.CodeInvalidArgument},
		{"blank title", http.MethodPost, "/api/chat/rooms", "alice", map[string]string{"title": "   "}, http.StatusBadRequest, service.CodeInvalidArgument},
		{"empty body", http.MethodPost, "/api/chat/rooms/" + roomID + "/members", "alice", nil, http.StatusBadRequest, service.CodeInvalidArgument},
		{"unknown room", http.MethodGet, "/api/chat/rooms/00000000-0000-7000-8000-000000000000/messages", "alice", nil, http.StatusNotFound, service.CodeNotFound},
		{"stranger reads history", http.MethodGet, "/api/chat/rooms/" + roomID + "/messages", "mallory", nil, http.StatusForbidden, service.CodeForbidden},
		{"unknown cursor", http.MethodGet, "/api/chat/rooms/" + roomID + "/messages?cursor=01ARZ3NDEKTSV4RRFFQ69G5FAV", "alice", nil, http.StatusNotFound, service.CodeNotFound},
		{"stranger invites", http.MethodPost, "/api/chat/rooms/" + roomID + "/members", "mallory", map[string]string{"memberId": "eve"}, http.StatusForbidden, service.CodeForbidden},
		{"owner leaves", http.MethodPost, "/api/chat/rooms/" + roomID + "/leave", "alice", nil, http.StatusBadRequest, service.CodeInvalidArgument},
		{"empty content", http.MethodPost, "/api/chat/rooms/" + roomID + "/messages", "alice", map[string]string{"content": ""}, http.StatusBadRequest, service.CodeInvalidArgument},
		{"member id too long", http.MethodPost, "/api/chat/rooms/" + roomID + "/members", "alice", map[string]string{"memberId": strings.Repeat("e", 65)}, http.StatusBadRequest, service.CodeInvalidArgument},
		{"user id too long", http.MethodGet, "/api/chat/rooms", strings.Repeat("a", 65), nil, http.StatusBadRequest, service.CodeInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			resp := f.call(t, tc.method, tc.path, tc.user, tc.body)
			req.Equal(tc.status, resp.status, string(resp.body))
			req.Equal(tc.code, resp.errorBody(t).Code)
		})
	}
}

func TestRooms_HistoryPagination(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	roomID := f.createRoom(t, "alice", "general", "bob")

	// Given: 45 сообщений
	for i := 0; i < 45; i++ {
		resp := f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", "bob", map[string]string{"content": fmt.Sprintf("m%d", i)})
		req.Equal(http.StatusCreated, resp.status, string(resp.body))
	}

	// When: первая страница без size
	var first []model.MessageView
	f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", "alice", nil).decode(t, &first)
	req.Len(first, service.DefaultPageSize)
	req.Equal("m44", first[0].Content)

	// When: следующая страница по курсору
	var second []model.MessageView
	path := "/api/chat/rooms/" + roomID + "/messages?size=30&cursor=" + first[len(first)-1].MessageID
	f.call(t, http.MethodGet, path, "alice", nil).decode(t, &second)
	req.Len(second, 15)
	req.Equal("m14", second[0].Content)
	req.Equal("m0", second[14].Content)

	// Then: за концом — пустая страница, а не null
	resp := f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages?cursor="+second[14].MessageID, "alice", nil)
	req.Equal(http.StatusOK, resp.status)
	req.JSONEq(`[]`, string(resp.body))

	// Then: нечисловой size заменяется значением по умолчанию
	var fallback []model.MessageView
	f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages?size=abc", "alice", nil).decode(t, &fallback)
	req.Len(fallback, service.DefaultPageSize)
}

func TestRooms_SendWithClientTokenIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	roomID := f.createRoom(t, "alice", "general")

	body := map[string]string{"content": "hello", "clientToken": "tok-1"}
	var a, b model.MessageView
	f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", "alice", body).decode(t, &a)
	f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", "alice", body).decode(t, &b)
	req.Equal(a.MessageID, b.MessageID)

	var page []model.MessageView
	f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", "alice", nil).decode(t, &page)
	req.Len(page, 1)
}

func TestRooms_KickLeaveAndMessageDelete(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	roomID := f.createRoom(t, "alice", "general", "bob", "carol")

	var msg model.MessageView
	f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", "bob", map[string]string{"content": "hi"}).decode(t, &msg)

	// When: carol читает и пытается удалить чужое сообщение
	req.Equal(http.StatusOK, f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/read", "carol", map[string]string{"messageId": msg.MessageID}).status)
	resp := f.call(t, http.MethodDelete, "/api/chat/rooms/"+roomID+"/messages/"+msg.MessageID, "carol", nil)
	req.Equal(http.StatusForbidden, resp.status)

	// When: bob удаляет своё
	req.Equal(http.StatusOK, f.call(t, http.MethodDelete, "/api/chat/rooms/"+roomID+"/messages/"+msg.MessageID, "bob", nil).status)
	resp = f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", "alice", nil)
	req.JSONEq(`[]`, string(resp.body))

	// When: bob исключён, carol вышла сама; повторный kick идемпотентен
	kick := map[string]string{"memberId": "bob"}
	req.Equal(http.StatusOK, f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/members/kick", "alice", kick).status)
	req.Equal(http.StatusOK, f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/members/kick", "alice", kick).status)
	req.Equal(http.StatusOK, f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/leave", "carol", nil).status)

	// Then: оба теряют доступ к истории и к отправке
	for _, user := range []string{"bob", "carol"} {
		resp = f.call(t, http.MethodGet, "/api/chat/rooms/"+roomID+"/messages", user, nil)
		req.Equal(http.StatusForbidden, resp.status, user)
		resp = f.call(t, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", user, map[string]string{"content": "x"})
		req.Equal(http.StatusForbidden, resp.status, user)
	}

	var bobRooms []model.MyRoom
	f.call(t, http.MethodGet, "/api/chat/rooms", "bob", nil).decode(t, &bobRooms)
	req.Empty(bobRooms)
}

func TestConfigEndpoints(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	var chatCfg map[string]int
	f.call(t, http.MethodGet, "/api/config/chat", "", nil).decode(t, &chatCfg)
	req.Equal(service.DefaultPageSize, chatCfg["defaultPageSize"])
	req.Equal(service.MaxPageSize, chatCfg["maxPageSize"])

	resp := f.call(t, http.MethodGet, "/api/config/push", "", nil)
	req.JSONEq(`{"enabled":false}`, string(resp.body))

	resp = f.call(t, http.MethodGet, "/health", "", nil)
	req.Equal(http.StatusOK, resp.status)
}
