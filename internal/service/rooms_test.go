package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
)

func TestCreateRoom_OwnerIsOnlyActiveMember(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// When user A creates a room
	room, err := f.chat.CreateRoom(ctx, "A", "  Backend team  ")
	req.NoError(err)

	// Then the room is active with a trimmed title
	req.Equal("Backend team", room.Title)
	req.Equal(model.RoomStatusActive, room.Status)
	req.NotEmpty(room.ID)

	// Then A is the only active member and is the owner
	ids, err := f.store.Members().ActiveUserIDs(ctx, room.Key)
	req.NoError(err)
	req.Equal([]string{"A"}, ids)
	req.Equal(model.RoleOwner, f.membership(t, room, "A").Role)

	// Then A's directory lists the room with no messages yet
	rooms, err := f.chat.MyRooms(ctx, "A")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(room.ID, rooms[0].RoomID)
	req.Equal(model.RoleOwner, rooms[0].MyRole)
	req.Nil(rooms[0].LastMessageAt)
}

func TestCreateRoom_InvalidTitle(t *testing.T) {
	f := newFixture()
	for _, title := range []string{"", "   ", strings.Repeat("x", MaxTitleLength+1)} {
		_, err := f.chat.CreateRoom(context.Background(), "A", title)
		require.Equal(t, CodeInvalidArgument, CodeOf(err), "title %q", title)
	}
}

func TestCreateRoom_RequiresIdentity(t *testing.T) {
	_, err := newFixture().chat.CreateRoom(context.Background(), "", "room")
	require.Equal(t, CodeUnauthenticated, CodeOf(err))

	// Given a requester id longer than the stored column
	_, err = newFixture().chat.CreateRoom(context.Background(), strings.Repeat("u", MaxUserIDLength+1), "room")
	require.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestRooms_GetDistinguishesMissingFromDeleted(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")
	rooms := NewRooms(f.store)

	_, err := rooms.GetActive(ctx, "no-such-room")
	req.ErrorIs(err, ErrRoomNotFound)

	_, err = rooms.SoftDelete(ctx, room.ID)
	req.NoError(err)

	_, err = rooms.GetActive(ctx, room.ID)
	req.ErrorIs(err, ErrRoomDeleted)

	got, err := rooms.Get(ctx, room.ID)
	req.NoError(err)
	req.True(got.IsDeleted())

	_, err = rooms.SoftDelete(ctx, room.ID)
	req.ErrorIs(err, ErrRoomAlreadyDeleted)
	req.Equal(CodeConflict, CodeOf(err))
}

func TestDeleteRoom_SecondDeleteConflicts(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given owner A with members B and C
	room := f.roomWithMembers(t, "A", "B", "C")

	// When A deletes the room
	req.NoError(f.chat.DeleteRoom(ctx, room.ID, "A"))

	// Then every membership has ended, the owner's included
	for _, u := range []string{"A", "B", "C"} {
		req.False(f.membership(t, room, u).IsActive(), u)
	}

	// Then the room is gone from everyone's directory
	for _, u := range []string{"A", "B", "C"} {
		rooms, err := f.chat.MyRooms(ctx, u)
		req.NoError(err)
		req.Empty(rooms)
	}

	// Then subscribers were told the room is gone
	events := f.events.Events()
	req.Equal(model.RoomEventRoomDeleted, events[len(events)-1].Type)

	// When A deletes it again
	err := f.chat.DeleteRoom(ctx, room.ID, "A")

	// Then it fails as a conflict
	req.ErrorIs(err, ErrRoomAlreadyDeleted)
}

func TestDeleteRoom_NonOwnerRollsBack(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")

	err := f.chat.DeleteRoom(ctx, room.ID, "B")
	req.ErrorIs(err, ErrNotOwner)

	got, err := NewRooms(f.store).GetActive(ctx, room.ID)
	req.NoError(err)
	req.Equal(model.RoomStatusActive, got.Status)
	req.True(f.membership(t, room, "A").IsActive())
	req.True(f.membership(t, room, "B").IsActive())
}

func TestDeleteRoom_OutsiderIsNotMember(t *testing.T) {
	f := newFixture()
	room := f.roomWithMembers(t, "A")
	err := f.chat.DeleteRoom(context.Background(), room.ID, "Z")
	require.ErrorIs(t, err, ErrNotMember)
}

func TestDeleteRoom_MissingRoom(t *testing.T) {
	err := newFixture().chat.DeleteRoom(context.Background(), "missing", "A")
	require.ErrorIs(t, err, ErrRoomNotFound)
}
