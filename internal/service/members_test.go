package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
)

func TestInvite_MemberCannotInvite(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given owner A invited B
	room := f.roomWithMembers(t, "A", "B")
	req.Equal(model.RoleMember, f.membership(t, room, "B").Role)

	// When B tries to invite C
	err := f.chat.Invite(ctx, room.ID, "B", "C")

	// Then B is not the owner and C has no membership
	req.ErrorIs(err, ErrNotOwner)
	_, err = f.store.Members().Get(ctx, room.Key, "C")
	req.Error(err)
}

func TestInvite_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")

	tests := []struct {
		name    string
		inviter string
		invitee string
		code    Code
		err     error
	}{
		{name: "self invite", inviter: "A", invitee: "A", code: CodeInvalidArgument},
		{name: "blank invitee", inviter: "A", invitee: " ", code: CodeInvalidArgument},
		{name: "outsider", inviter: "Z", invitee: "C", code: CodeForbidden, err: ErrNotMember},
		{name: "invitee id too long", inviter: "A", invitee: strings.Repeat("u", MaxUserIDLength+1), code: CodeInvalidArgument},
		{name: "inviter id too long", inviter: strings.Repeat("u", MaxUserIDLength+1), invitee: "C", code: CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.chat.Invite(ctx, room.ID, tt.inviter, tt.invitee)
			require.Equal(t, tt.code, CodeOf(err))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestInvite_InviteeCannotInviteOwnerBack(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given owner U1 invited U2
	room := f.roomWithMembers(t, "U1", "U2")

	// When U2 tries to invite U1 back
	err := f.chat.Invite(ctx, room.ID, "U2", "U1")

	// Then only the owner may invite and the room still has exactly two memberships
	req.ErrorIs(err, ErrNotOwner)
	req.Equal(CodeForbidden, CodeOf(err))
	ids, err := f.store.Members().ActiveUserIDs(ctx, room.Key)
	req.NoError(err)
	req.ElementsMatch([]string{"U1", "U2"}, ids)
	req.Equal(model.RoleOwner, f.membership(t, room, "U1").Role)
	req.Equal(model.RoleMember, f.membership(t, room, "U2").Role)
}

func TestInvite_MaxLengthMemberID(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")
	id := strings.Repeat("u", MaxUserIDLength)

	// When the invitee id is exactly at the column limit
	req.NoError(f.chat.Invite(ctx, room.ID, "A", id))

	// Then the membership is stored
	req.True(f.membership(t, room, id).IsActive())
}

func TestInvite_IsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")
	before := f.membership(t, room, "B")

	req.NoError(f.chat.Invite(ctx, room.ID, "A", "B"))

	after := f.membership(t, room, "B")
	req.Equal(before.Key, after.Key)
	req.True(after.IsActive())
}

func TestInvite_DoesNotReactivateLeftMember(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given B was kicked
	room := f.roomWithMembers(t, "A", "B")
	req.NoError(f.chat.Kick(ctx, room.ID, "A", "B"))

	// When A invites B again
	req.NoError(f.chat.Invite(ctx, room.ID, "A", "B"))

	// Then the call succeeds but B stays out
	req.False(f.membership(t, room, "B").IsActive())
	_, err := f.gw.SendMessage(ctx, SendCommand{RoomID: room.ID, SenderID: "B", Content: "back?"})
	req.ErrorIs(err, ErrMemberLeft)
}

func TestInvite_DeletedRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")
	require.NoError(t, f.chat.DeleteRoom(ctx, room.ID, "A"))

	err := f.chat.Invite(ctx, room.ID, "A", "B")
	require.ErrorIs(t, err, ErrRoomDeleted)
}

func TestKick_RemovesAccess(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given owner A and member B
	room := f.roomWithMembers(t, "A", "B")

	// When A kicks B
	req.NoError(f.chat.Kick(ctx, room.ID, "A", "B"))

	// Then B cannot send or read history
	_, err := f.gw.SendMessage(ctx, SendCommand{RoomID: room.ID, SenderID: "B", Content: "hi"})
	req.ErrorIs(err, ErrMemberLeft)
	_, err = f.chat.History(ctx, HistoryQuery{RoomID: room.ID, RequesterID: "B"})
	req.ErrorIs(err, ErrMemberLeft)

	// Then live subscribers are told B was removed
	events := f.events.Events()
	req.Equal(model.RoomEventMemberRemoved, events[len(events)-1].Type)
	req.Equal("B", events[len(events)-1].UserID)

	// When A kicks B again
	req.NoError(f.chat.Kick(ctx, room.ID, "A", "B"))

	// Then nothing changes and no second event is published
	req.Len(f.events.Events(), len(events))
}

func TestKick_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")

	tests := []struct {
		name   string
		kicker string
		target string
		err    error
		code   Code
	}{
		{name: "self kick", kicker: "A", target: "A", code: CodeInvalidArgument},
		{name: "outsider", kicker: "Z", target: "B", err: ErrNotMember, code: CodeForbidden},
		{name: "member kicks", kicker: "B", target: "A", err: ErrNotOwner, code: CodeForbidden},
		{name: "unknown target", kicker: "A", target: "nobody", err: ErrMemberNotFound, code: CodeNotFound},
		{name: "target id too long", kicker: "A", target: strings.Repeat("u", MaxUserIDLength+1), code: CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.chat.Kick(ctx, room.ID, tt.kicker, tt.target)
			require.Equal(t, tt.code, CodeOf(err))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestKick_ConcurrentKicksEndMembershipOnce(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.chat.Kick(ctx, room.ID, "A", "B")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	req.False(f.membership(t, room, "B").IsActive())
	removed := 0
	for _, ev := range f.events.Events() {
		if ev.Type == model.RoomEventMemberRemoved {
			removed++
		}
	}
	req.Equal(1, removed)
}

func TestLeave(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")

	req.NoError(f.chat.Leave(ctx, room.ID, "B"))
	req.False(f.membership(t, room, "B").IsActive())

	// повторный выход — no-op
	req.NoError(f.chat.Leave(ctx, room.ID, "B"))

	err := f.chat.Leave(ctx, room.ID, "A")
	req.Equal(CodeInvalidArgument, CodeOf(err))

	err = f.chat.Leave(ctx, room.ID, "Z")
	req.ErrorIs(err, ErrNotMember)
}

func TestMarkRead_MovesForwardOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")
	first := f.send(t, room.ID, "A", "one")
	second := f.send(t, room.ID, "A", "two")

	req.NoError(f.chat.MarkRead(ctx, room.ID, "B", second.MessageID))
	marked := *f.membership(t, room, "B").LastReadMessageKey

	req.NoError(f.chat.MarkRead(ctx, room.ID, "B", first.MessageID))
	req.Equal(marked, *f.membership(t, room, "B").LastReadMessageKey)

	err := f.chat.MarkRead(ctx, room.ID, "B", "unknown")
	req.ErrorIs(err, ErrMessageNotFound)

	err = f.chat.MarkRead(ctx, room.ID, "Z", second.MessageID)
	req.ErrorIs(err, ErrNotMember)
}

func TestKickAllByOwner_RequiresActiveOwner(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B", "C")
	members := NewMembers(f.store)

	_, err := members.KickAllByOwner(ctx, room, "B")
	req.ErrorIs(err, ErrNotOwner)

	n, err := members.KickAllByOwner(ctx, room, "A")
	req.NoError(err)
	req.Equal(int64(3), n)

	// владелец тоже вышел, повторный вызов запрещён
	_, err = members.KickAllByOwner(ctx, room, "A")
	req.ErrorIs(err, ErrMemberLeft)
}

func TestMembers_ManyInvitesStayUnique(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = f.chat.Invite(ctx, room.ID, "A", fmt.Sprintf("U%d", i%5))
		}(i)
	}
	wg.Wait()

	ids, err := f.store.Members().ActiveUserIDs(ctx, room.Key)
	req.NoError(err)
	req.Equal([]string{"A", "U0", "U1", "U2", "U3", "U4"}, ids)
}
