package model

import "time"

type RoomStatus string

const (
	RoomStatusActive  RoomStatus = "active"
	RoomStatusDeleted RoomStatus = "deleted"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Room — групповой чат. Key — внутренний ключ хранилища, ID — внешний идентификатор для клиентов.
type Room struct {
	Key       int64      `json:"-"`
	ID        string     `json:"roomId"`
	Title     string     `json:"title"`
	Status    RoomStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (r *Room) IsDeleted() bool { return r.Status == RoomStatusDeleted }

// Membership — участие пользователя в комнате. Строка не удаляется и не реактивируется:
// выход и исключение только проставляют LeftAt.
type Membership struct {
	Key                int64      `json:"-"`
	RoomKey            int64      `json:"-"`
	UserID             string     `json:"userId"`
	Role               Role       `json:"role"`
	JoinedAt           time.Time  `json:"joinedAt"`
	LeftAt             *time.Time `json:"leftAt,omitempty"`
	LastReadMessageKey *int64     `json:"-"`
	LastReadAt         *time.Time `json:"lastReadAt,omitempty"`
}

func (m *Membership) IsActive() bool { return m.LeftAt == nil }

// MyRoom — строка списка "мои комнаты".
type MyRoom struct {
	RoomKey       int64      `json:"-"`
	RoomID        string     `json:"roomId"`
	Title         string     `json:"title"`
	MyRole        Role       `json:"myRole"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
}
