package model

type RoomEventType string

const (
	RoomEventMessage        RoomEventType = "message"
	RoomEventMessageDeleted RoomEventType = "message_deleted"
	RoomEventMemberRemoved  RoomEventType = "member_removed"
	RoomEventRoomDeleted    RoomEventType = "room_deleted"
)

// RoomEvent — единица real-time рассылки подписчикам комнаты (локально и через Redis).
type RoomEvent struct {
	Type      RoomEventType `json:"type"`
	RoomID    string        `json:"roomId"`
	UserID    string        `json:"userId,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	Message   *MessageView  `json:"message,omitempty"`
}
