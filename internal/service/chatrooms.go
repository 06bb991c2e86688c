package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

// ChatRooms — сценарии REST-поверхности: жизненный цикл комнат, участники, история.
type ChatRooms struct {
	store     storage.Store
	rooms     *Rooms
	members   *Members
	messages  *Messages
	directory *Directory
	events    Broadcaster
}

// NewChatRooms: events может быть nil — тогда уведомления подписчикам не рассылаются.
func NewChatRooms(store storage.Store, events Broadcaster) *ChatRooms {
	return &ChatRooms{
		store:     store,
		rooms:     NewRooms(store),
		members:   NewMembers(store),
		messages:  NewMessages(store),
		directory: NewDirectory(store),
		events:    events,
	}
}

// MaxUserIDLength совпадает с VARCHAR(64) колонок user_id и sender_id.
const MaxUserIDLength = 64

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &Error{Code: CodeUnauthenticated, Message: "unauthenticated"}
	}
	return checkUserIDLength(userID)
}

func checkUserIDLength(userID string) error {
	if utf8.RuneCountInString(userID) > MaxUserIDLength {
		return invalidArgument(fmt.Sprintf("user id must be at most %d characters", MaxUserIDLength))
	}
	return nil
}

// CreateRoom создаёт комнату и строку владельца в одной транзакции.
func (c *ChatRooms) CreateRoom(ctx context.Context, requesterID, title string) (*model.Room, error) {
	if err := requireUser(requesterID); err != nil {
		return nil, err
	}
	var room *model.Room
	err := c.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		room, err = c.rooms.withStore(tx).Create(ctx, title)
		if err != nil {
			return err
		}
		_, err = c.members.withStore(tx).AddOwner(ctx, room, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *ChatRooms) Invite(ctx context.Context, roomID, requesterID, memberID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	room, err := c.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	_, err = c.members.Invite(ctx, room, requesterID, memberID)
	return err
}

func (c *ChatRooms) Kick(ctx context.Context, roomID, requesterID, memberID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	room, err := c.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	changed, err := c.members.Kick(ctx, room, requesterID, memberID)
	if err != nil {
		return err
	}
	if changed {
		publish(ctx, c.events, model.RoomEvent{Type: model.RoomEventMemberRemoved, RoomID: room.ID, UserID: strings.TrimSpace(memberID)})
	}
	return nil
}

func (c *ChatRooms) Leave(ctx context.Context, roomID, requesterID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	room, err := c.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	changed, err := c.members.Leave(ctx, room, requesterID)
	if err != nil {
		return err
	}
	if changed {
		publish(ctx, c.events, model.RoomEvent{Type: model.RoomEventMemberRemoved, RoomID: room.ID, UserID: requesterID})
	}
	return nil
}

// DeleteRoom: проверка владельца, выход всех участников и перевод комнаты в deleted —
// одна транзакция. Повторное удаление — ErrRoomAlreadyDeleted.
func (c *ChatRooms) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	var deleted *model.Room
	err := c.store.InTx(ctx, func(tx storage.Store) error {
		rooms := c.rooms.withStore(tx)
		room, err := rooms.Get(ctx, roomID)
		if err != nil {
			return err
		}
		if room.IsDeleted() {
			return ErrRoomAlreadyDeleted
		}
		if _, err := c.members.withStore(tx).KickAllByOwner(ctx, room, requesterID); err != nil {
			return err
		}
		deleted, err = rooms.SoftDelete(ctx, room.ID)
		return err
	})
	if err != nil {
		return err
	}
	publish(ctx, c.events, model.RoomEvent{Type: model.RoomEventRoomDeleted, RoomID: deleted.ID})
	return nil
}

func (c *ChatRooms) MyRooms(ctx context.Context, requesterID string) ([]model.MyRoom, error) {
	if err := requireUser(requesterID); err != nil {
		return nil, err
	}
	return c.directory.MyRooms(ctx, requesterID)
}

type HistoryQuery struct {
	RoomID      string
	RequesterID string
	Cursor      string
	Size        int
}

// History — страница истории от новых к старым. Cursor — messageId последнего
// сообщения предыдущей страницы.
func (c *ChatRooms) History(ctx context.Context, q HistoryQuery) ([]model.MessageView, error) {
	if err := requireUser(q.RequesterID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.RoomID) == "" {
		return nil, invalidArgument("roomId is required")
	}
	room, err := c.rooms.GetActive(ctx, q.RoomID)
	if err != nil {
		return nil, err
	}
	if _, err := c.members.ValidateActiveMember(ctx, room, q.RequesterID); err != nil {
		return nil, err
	}
	cursor, err := c.messages.ResolveCursor(ctx, room, q.Cursor)
	if err != nil {
		return nil, err
	}
	msgs, err := c.messages.Page(ctx, room, cursor, q.Size)
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m model.Message, _ int) model.MessageView {
		return model.NewMessageView(room.ID, &m)
	}), nil
}

func (c *ChatRooms) MarkRead(ctx context.Context, roomID, requesterID, messageID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	room, err := c.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	return c.members.MarkRead(ctx, room, requesterID, messageID)
}

// DeleteMessage — мягкое удаление своего сообщения активным участником.
func (c *ChatRooms) DeleteMessage(ctx context.Context, roomID, requesterID, messageID string) error {
	if err := requireUser(requesterID); err != nil {
		return err
	}
	room, err := c.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := c.members.ValidateActiveMember(ctx, room, requesterID); err != nil {
		return err
	}
	m, err := c.messages.SoftDelete(ctx, room, requesterID, messageID)
	if err != nil {
		return err
	}
	publish(ctx, c.events, model.RoomEvent{Type: model.RoomEventMessageDeleted, RoomID: room.ID, MessageID: m.ID})
	return nil
}
