package model

import "time"

// Message — запись журнала сообщений. Key назначает хранилище (строго возрастает),
// по нему идут сортировка и курсорная пагинация.
type Message struct {
	Key         int64
	ID          string
	RoomKey     int64
	SenderID    string
	Content     string
	ClientToken *string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

func (m *Message) IsDeleted() bool { return m.DeletedAt != nil }

// MessageView — представление сообщения для клиентов (история и real-time).
type MessageView struct {
	RoomID    string    `json:"roomId"`
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewMessageView(roomID string, m *Message) MessageView {
	return MessageView{
		RoomID:    roomID,
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
