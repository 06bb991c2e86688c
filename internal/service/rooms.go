package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

const MaxTitleLength = 100

func utcNow() time.Time { return time.Now().UTC() }

// Rooms — хранилище комнат: создание, чтение по внешнему id, мягкое удаление.
type Rooms struct {
	store storage.Store
	now   func() time.Time
}

func NewRooms(store storage.Store) *Rooms {
	return &Rooms{store: store, now: utcNow}
}

func (s *Rooms) withStore(st storage.Store) *Rooms {
	c := *s
	c.store = st
	return &c
}

func (s *Rooms) Create(ctx context.Context, title string) (*model.Room, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, invalidArgument(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	room := &model.Room{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     title,
		Status:    model.RoomStatusActive,
		CreatedAt: s.now(),
	}
	if err := s.store.Rooms().Create(ctx, room); err != nil {
		return nil, fmt.Errorf("rooms.Create: %w", err)
	}
	return room, nil
}

// Get возвращает комнату в любом статусе.
func (s *Rooms) Get(ctx context.Context, id string) (*model.Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidArgument("roomId is required")
	}
	room, err := s.store.Rooms().GetByExternalID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rooms.Get: %w", err)
	}
	return room, nil
}

// GetActive отличает "не существовала" (ErrRoomNotFound) от "удалена" (ErrRoomDeleted).
func (s *Rooms) GetActive(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.IsDeleted() {
		return nil, ErrRoomDeleted
	}
	return room, nil
}

// SoftDelete не идемпотентен: повторное удаление — ErrRoomAlreadyDeleted.
func (s *Rooms) SoftDelete(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.IsDeleted() {
		return nil, ErrRoomAlreadyDeleted
	}
	changed, err := s.store.Rooms().MarkDeleted(ctx, room.Key)
	if err != nil {
		return nil, fmt.Errorf("rooms.SoftDelete: %w", err)
	}
	if !changed {
		return nil, ErrRoomAlreadyDeleted
	}
	room.Status = model.RoomStatusDeleted
	return room, nil
}
