package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

type Directory struct {
	store storage.Store
}

func NewDirectory(store storage.Store) *Directory {
	return &Directory{store: store}
}

// MyRooms — активные комнаты пользователя в порядке SortMyRooms.
func (s *Directory) MyRooms(ctx context.Context, userID string) ([]model.MyRoom, error) {
	rooms, err := s.store.Directory().MyRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("directory.MyRooms: %w", err)
	}
	SortMyRooms(rooms)
	return rooms, nil
}

// SortMyRooms: комнаты с сообщениями раньше комнат без них, затем по убыванию
// времени последнего сообщения, при равенстве — по убыванию ключа комнаты (новые выше).
func SortMyRooms(rooms []model.MyRoom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		case a.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		}
		return a.RoomKey > b.RoomKey
	})
}
