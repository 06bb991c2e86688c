package ws

import (
	"errors"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/service"
)

type EventType string

const (
	// от клиента
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"
	EventSend        EventType = "send"
	EventPing        EventType = "ping"

	// от сервера
	EventMessage        EventType = "message"
	EventSubscribed     EventType = "subscribed"
	EventUnsubscribed   EventType = "unsubscribed"
	EventSent           EventType = "sent"
	EventMessageDeleted EventType = "message_deleted"
	EventMemberRemoved  EventType = "member_removed"
	EventRoomDeleted    EventType = "room_deleted"
	EventPong           EventType = "pong"
	EventError          EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type        EventType `json:"type"`
	RoomID      string    `json:"roomId,omitempty"`
	Content     string    `json:"content,omitempty"`
	ClientToken string    `json:"clientToken,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Code    service.Code   `json:"code"`
	Reason  service.Reason `json:"reason,omitempty"`
	Message string         `json:"message"`
}

// MessageDeletedPayload is broadcast when a sender deletes a message.
type MessageDeletedPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// MemberRemovedPayload is broadcast when a member is kicked or leaves.
type MemberRemovedPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

func errorMessage(err error) OutgoingMessage {
	p := ErrorPayload{Code: service.CodeOf(err), Message: service.PublicMessage(err)}
	var se *service.Error
	if errors.As(err, &se) {
		p.Reason = se.Reason
	}
	return OutgoingMessage{Type: EventError, Payload: p}
}

func rateLimitedFrame() OutgoingMessage {
	return OutgoingMessage{Type: EventError, Payload: ErrorPayload{Code: service.CodeRateLimited, Message: "too many frames, slow down"}}
}

func invalidFrame(msg string) OutgoingMessage {
	return OutgoingMessage{Type: EventError, Payload: ErrorPayload{Code: service.CodeInvalidArgument, Message: msg}}
}

// eventMessage переводит событие комнаты в кадр для подписчиков.
func eventMessage(ev model.RoomEvent) (OutgoingMessage, bool) {
	switch ev.Type {
	case model.RoomEventMessage:
		if ev.Message == nil {
			return OutgoingMessage{}, false
		}
		return OutgoingMessage{Type: EventMessage, Payload: *ev.Message}, true
	case model.RoomEventMessageDeleted:
		return OutgoingMessage{Type: EventMessageDeleted, Payload: MessageDeletedPayload{RoomID: ev.RoomID, MessageID: ev.MessageID}}, true
	case model.RoomEventMemberRemoved:
		return OutgoingMessage{Type: EventMemberRemoved, Payload: MemberRemovedPayload{RoomID: ev.RoomID, UserID: ev.UserID}}, true
	case model.RoomEventRoomDeleted:
		return OutgoingMessage{Type: EventRoomDeleted, Payload: RoomPayload{RoomID: ev.RoomID}}, true
	default:
		return OutgoingMessage{}, false
	}
}
