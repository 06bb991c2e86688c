package storage

import (
	"context"
	"errors"
	"time"

	"github.com/groupchat/internal/model"
)

// ErrNotFound возвращается хранилищем, когда запись по ключу отсутствует.
var ErrNotFound = errors.New("not found")

// ErrConflict — нарушение уникальности внешнего идентификатора.
var ErrConflict = errors.New("conflict")

// Store — хранилище комнат, участников и сообщений.
// Реализации: repository.Store (Postgres), memory.Store (тесты и -memory без БД).
type Store interface {
	Rooms() RoomStore
	Members() MemberStore
	Messages() MessageStore
	Directory() DirectoryStore
	// InTx выполняет fn в одной транзакции; fn получает Store, привязанный к транзакции.
	// Ошибка из fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type RoomStore interface {
	// Create сохраняет комнату и проставляет r.Key.
	Create(ctx context.Context, r *model.Room) error
	GetByExternalID(ctx context.Context, id string) (*model.Room, error)
	// MarkDeleted переводит active -> deleted; false, если комната уже удалена.
	MarkDeleted(ctx context.Context, key int64) (bool, error)
}

type MemberStore interface {
	// Create вставляет строку участия; false, если строка для (room, user) уже есть.
	Create(ctx context.Context, m *model.Membership) (bool, error)
	Get(ctx context.Context, roomKey int64, userID string) (*model.Membership, error)
	// Leave проставляет left_at только активной строке; false, если строка уже неактивна.
	Leave(ctx context.Context, roomKey int64, userID string, at time.Time) (bool, error)
	// LeaveAll проставляет left_at всем активным участникам комнаты.
	LeaveAll(ctx context.Context, roomKey int64, at time.Time) (int64, error)
	ActiveUserIDs(ctx context.Context, roomKey int64) ([]string, error)
	// MarkRead сдвигает отметку прочтения вперёд (назад не двигает).
	MarkRead(ctx context.Context, roomKey int64, userID string, messageKey int64, at time.Time) error
}

type MessageStore interface {
	// Append сохраняет сообщение и проставляет m.Key. Если задан ClientToken и сообщение
	// с тем же (room, sender, token) уже есть, возвращает его и false.
	Append(ctx context.Context, m *model.Message) (*model.Message, bool, error)
	// FindActive ищет неудалённое сообщение комнаты по внешнему id.
	FindActive(ctx context.Context, roomKey int64, id string) (*model.Message, error)
	// Page возвращает неудалённые сообщения комнаты с key < before (если задан), по убыванию key.
	Page(ctx context.Context, roomKey int64, before *int64, limit int) ([]model.Message, error)
	// SoftDelete проставляет deleted_at; false, если сообщение уже удалено.
	SoftDelete(ctx context.Context, key int64, at time.Time) (bool, error)
}

type DirectoryStore interface {
	// MyRooms возвращает активные комнаты, где пользователь — активный участник.
	MyRooms(ctx context.Context, userID string) ([]model.MyRoom, error)
}
