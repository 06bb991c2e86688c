package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groupchat/internal/middleware"
	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/service"
)

// RoomHandler — REST-поверхность групповых комнат: комнаты, участники, история, отправка.
type RoomHandler struct {
	rooms   *service.ChatRooms
	gateway *service.Gateway
}

func NewRoomHandler(rooms *service.ChatRooms, gateway *service.Gateway) *RoomHandler {
	return &RoomHandler{rooms: rooms, gateway: gateway}
}

// Routes монтируется под /api/chat/rooms (после auth-middleware).
func (h *RoomHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateRoom)
	r.Get("/", h.MyRooms)
	r.Route("/{roomId}", func(r chi.Router) {
		r.Delete("/", h.DeleteRoom)
		r.Post("/members", h.Invite)
		r.Post("/members/kick", h.Kick)
		r.Post("/leave", h.Leave)
		r.Post("/read", h.MarkRead)
		r.Get("/messages", h.History)
		r.Post("/messages", h.SendMessage)
		r.Delete("/messages/{messageId}", h.DeleteMessage)
	})
	return r
}

type CreateRoomRequest struct {
	Title string `json:"title" validate:"required"`
}

type MemberRequest struct {
	MemberID string `json:"memberId" validate:"required,max=64"`
}

type SendMessageRequest struct {
	Content     string `json:"content" validate:"required"`
	ClientToken string `json:"clientToken,omitempty" validate:"omitempty,max=64"`
}

type MarkReadRequest struct {
	MessageID string `json:"messageId" validate:"required"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeInvalidArgument, err.Error())
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), middleware.GetUserID(r.Context()), req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/chat/rooms/"+room.ID)
	w.WriteHeader(http.StatusCreated)
}

func (h *RoomHandler) MyRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.MyRooms(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []model.MyRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeInvalidArgument, err.Error())
		return
	}
	err := h.rooms.Invite(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context()), req.MemberID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandler) Kick(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeInvalidArgument, err.Error())
		return
	}
	err := h.rooms.Kick(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context()), req.MemberID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Leave(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.DeleteRoom(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// History — GET ?cursor=<messageId>&size=N, от новых к старым.
// Некорректный или слишком большой size заменяется размером по умолчанию.
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	views, err := h.rooms.History(r.Context(), service.HistoryQuery{
		RoomID:      chi.URLParam(r, "roomId"),
		RequesterID: middleware.GetUserID(r.Context()),
		Cursor:      r.URL.Query().Get("cursor"),
		Size:        queryInt(r, "size", 0),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if views == nil {
		views = []model.MessageView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RoomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeInvalidArgument, err.Error())
		return
	}
	view, err := h.gateway.SendMessage(r.Context(), service.SendCommand{
		RoomID:      chi.URLParam(r, "roomId"),
		SenderID:    middleware.GetUserID(r.Context()),
		Content:     req.Content,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *RoomHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.rooms.DeleteMessage(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context()), chi.URLParam(r, "messageId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeInvalidArgument, err.Error())
		return
	}
	err := h.rooms.MarkRead(r.Context(), chi.URLParam(r, "roomId"), middleware.GetUserID(r.Context()), req.MessageID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
