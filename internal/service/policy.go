package service

import "github.com/groupchat/internal/model"

type Action string

const (
	ActionSend       Action = "send"
	ActionRead       Action = "read"
	ActionSubscribe  Action = "subscribe"
	ActionMarkRead   Action = "mark_read"
	ActionInvite     Action = "invite"
	ActionKick       Action = "kick"
	ActionDeleteRoom Action = "delete_room"
)

func ownerOnly(a Action) bool {
	switch a {
	case ActionInvite, ActionKick, ActionDeleteRoom:
		return true
	}
	return false
}

// CanPerform — единственное место, где состояние участия превращается в право на действие.
// nil означает отсутствие строки участия.
func CanPerform(m *model.Membership, action Action) bool {
	if m == nil || !m.IsActive() {
		return false
	}
	if ownerOnly(action) {
		return m.Role == model.RoleOwner
	}
	return true
}

// Authorize объясняет отказ CanPerform: нет строки → not_member, не владелец для
// owner-действия → not_owner, строка неактивна → left.
func Authorize(m *model.Membership, action Action) error {
	if CanPerform(m, action) {
		return nil
	}
	switch {
	case m == nil:
		return ErrNotMember
	case ownerOnly(action) && m.Role != model.RoleOwner:
		return ErrNotOwner
	default:
		return ErrMemberLeft
	}
}
