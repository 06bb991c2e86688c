package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

// Members управляет участием в комнатах. Строки участия не удаляются и не реактивируются:
// вышедший или исключённый пользователь повторно не приглашается.
type Members struct {
	store storage.Store
	now   func() time.Time
}

func NewMembers(store storage.Store) *Members {
	return &Members{store: store, now: utcNow}
}

func (s *Members) withStore(st storage.Store) *Members {
	c := *s
	c.store = st
	return &c
}

// lookup возвращает nil без ошибки, если строки участия нет.
func (s *Members) lookup(ctx context.Context, room *model.Room, userID string) (*model.Membership, error) {
	m, err := s.store.Members().Get(ctx, room.Key, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("members.lookup: %w", err)
	}
	return m, nil
}

func (s *Members) AddOwner(ctx context.Context, room *model.Room, userID string) (*model.Membership, error) {
	m := &model.Membership{
		RoomKey:  room.Key,
		UserID:   userID,
		Role:     model.RoleOwner,
		JoinedAt: s.now(),
	}
	created, err := s.store.Members().Create(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("members.AddOwner: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("members.AddOwner: owner row for room %s already exists", room.ID)
	}
	return m, nil
}

// Invite возвращает true, если строка участия создана; повторное приглашение — no-op.
func (s *Members) Invite(ctx context.Context, room *model.Room, inviterID, inviteeID string) (bool, error) {
	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return false, invalidArgument("memberId is required")
	}
	if err := checkUserIDLength(inviteeID); err != nil {
		return false, err
	}
	if inviterID == inviteeID {
		return false, invalidArgument("cannot invite yourself")
	}
	inviter, err := s.lookup(ctx, room, inviterID)
	if err != nil {
		return false, err
	}
	if err := Authorize(inviter, ActionInvite); err != nil {
		return false, err
	}
	m := &model.Membership{
		RoomKey:  room.Key,
		UserID:   inviteeID,
		Role:     model.RoleMember,
		JoinedAt: s.now(),
	}
	created, err := s.store.Members().Create(ctx, m)
	if err != nil {
		return false, fmt.Errorf("members.Invite: %w", err)
	}
	return created, nil
}

// Kick возвращает true, если участник был активен и исключён сейчас.
func (s *Members) Kick(ctx context.Context, room *model.Room, kickerID, targetID string) (bool, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return false, invalidArgument("memberId is required")
	}
	if err := checkUserIDLength(targetID); err != nil {
		return false, err
	}
	if kickerID == targetID {
		return false, invalidArgument("cannot kick yourself")
	}
	kicker, err := s.lookup(ctx, room, kickerID)
	if err != nil {
		return false, err
	}
	if err := Authorize(kicker, ActionKick); err != nil {
		return false, err
	}
	target, err := s.lookup(ctx, room, targetID)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, ErrMemberNotFound
	}
	if !target.IsActive() {
		return false, nil
	}
	changed, err := s.store.Members().Leave(ctx, room.Key, targetID, s.now())
	if err != nil {
		return false, fmt.Errorf("members.Kick: %w", err)
	}
	return changed, nil
}

// Leave — добровольный выход. Владелец выйти не может: комнату удаляют целиком.
func (s *Members) Leave(ctx context.Context, room *model.Room, userID string) (bool, error) {
	m, err := s.lookup(ctx, room, userID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, ErrNotMember
	}
	if m.Role == model.RoleOwner {
		return false, invalidArgument("owner cannot leave the room, delete it instead")
	}
	if !m.IsActive() {
		return false, nil
	}
	changed, err := s.store.Members().Leave(ctx, room.Key, userID, s.now())
	if err != nil {
		return false, fmt.Errorf("members.Leave: %w", err)
	}
	return changed, nil
}

// KickAllByOwner завершает участие всех активных участников, включая владельца.
func (s *Members) KickAllByOwner(ctx context.Context, room *model.Room, ownerID string) (int64, error) {
	owner, err := s.lookup(ctx, room, ownerID)
	if err != nil {
		return 0, err
	}
	if err := Authorize(owner, ActionDeleteRoom); err != nil {
		return 0, err
	}
	n, err := s.store.Members().LeaveAll(ctx, room.Key, s.now())
	if err != nil {
		return 0, fmt.Errorf("members.KickAllByOwner: %w", err)
	}
	return n, nil
}

// ValidateActiveMember — общая проверка перед отправкой, чтением истории и подпиской.
func (s *Members) ValidateActiveMember(ctx context.Context, room *model.Room, userID string) (*model.Membership, error) {
	m, err := s.lookup(ctx, room, userID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(m, ActionRead); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkRead сдвигает отметку прочтения на сообщение messageID этой комнаты.
func (s *Members) MarkRead(ctx context.Context, room *model.Room, userID, messageID string) error {
	m, err := s.lookup(ctx, room, userID)
	if err != nil {
		return err
	}
	if err := Authorize(m, ActionMarkRead); err != nil {
		return err
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return invalidArgument("messageId is required")
	}
	msg, err := s.store.Messages().FindActive(ctx, room.Key, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("members.MarkRead find: %w", err)
	}
	if err := s.store.Members().MarkRead(ctx, room.Key, userID, msg.Key, s.now()); err != nil {
		return fmt.Errorf("members.MarkRead: %w", err)
	}
	return nil
}

func (s *Members) ActiveUserIDs(ctx context.Context, room *model.Room) ([]string, error) {
	ids, err := s.store.Members().ActiveUserIDs(ctx, room.Key)
	if err != nil {
		return nil, fmt.Errorf("members.ActiveUserIDs: %w", err)
	}
	return ids, nil
}
