package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

const (
	DefaultPageSize  = 30
	MaxPageSize      = 200
	MaxContentLength = 4000
	maxClientToken   = 64
)

// ClampPageSize: size <= 0 или > MaxPageSize заменяется на DefaultPageSize.
func ClampPageSize(size int) int {
	if size <= 0 || size > MaxPageSize {
		return DefaultPageSize
	}
	return size
}

// Messages — журнал сообщений: добавление, курсоры, страницы, мягкое удаление.
type Messages struct {
	store storage.Store
	now   func() time.Time
	newID func() string
}

func NewMessages(store storage.Store) *Messages {
	return &Messages{
		store: store,
		now:   utcNow,
		newID: func() string { return ulid.Make().String() },
	}
}

// Append возвращает created=false, если сообщение с тем же clientToken уже было сохранено.
// Без clientToken повтор вызова создаёт новое сообщение.
func (s *Messages) Append(ctx context.Context, room *model.Room, senderID, content, clientToken string) (*model.Message, bool, error) {
	if strings.TrimSpace(content) == "" {
		return nil, false, invalidArgument("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, false, invalidArgument(fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}
	m := &model.Message{
		ID:        s.newID(),
		RoomKey:   room.Key,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if token := strings.TrimSpace(clientToken); token != "" {
		if len(token) > maxClientToken {
			return nil, false, invalidArgument(fmt.Sprintf("clientToken must be at most %d bytes", maxClientToken))
		}
		m.ClientToken = &token
	}
	stored, created, err := s.store.Messages().Append(ctx, m)
	if err != nil {
		return nil, false, fmt.Errorf("messages.Append: %w", err)
	}
	return stored, created, nil
}

// ResolveCursor: пустой messageID — "с самого нового" (nil). Удалённое сообщение
// или сообщение другой комнаты курсором быть не может.
func (s *Messages) ResolveCursor(ctx context.Context, room *model.Room, messageID string) (*int64, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, nil
	}
	m, err := s.store.Messages().FindActive(ctx, room.Key, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("messages.ResolveCursor: %w", err)
	}
	return &m.Key, nil
}

// Page возвращает не больше ClampPageSize(limit) неудалённых сообщений старше курсора,
// от новых к старым.
func (s *Messages) Page(ctx context.Context, room *model.Room, cursor *int64, limit int) ([]model.Message, error) {
	msgs, err := s.store.Messages().Page(ctx, room.Key, cursor, ClampPageSize(limit))
	if err != nil {
		return nil, fmt.Errorf("messages.Page: %w", err)
	}
	return msgs, nil
}

// SoftDelete удаляет сообщение отправителя; строка остаётся в журнале.
func (s *Messages) SoftDelete(ctx context.Context, room *model.Room, requesterID, messageID string) (*model.Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, invalidArgument("messageId is required")
	}
	m, err := s.store.Messages().FindActive(ctx, room.Key, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("messages.SoftDelete find: %w", err)
	}
	if m.SenderID != requesterID {
		return nil, ErrNotSender
	}
	changed, err := s.store.Messages().SoftDelete(ctx, m.Key, s.now())
	if err != nil {
		return nil, fmt.Errorf("messages.SoftDelete: %w", err)
	}
	if !changed {
		return nil, ErrMessageNotFound
	}
	return m, nil
}
