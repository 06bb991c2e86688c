package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
)

func TestSortMyRooms(t *testing.T) {
	req := require.New(t)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := t0.Add(d); return &v }

	rooms := []model.MyRoom{
		{RoomKey: 1, RoomID: "quiet-old"},
		{RoomKey: 2, RoomID: "busy-earlier", LastMessageAt: at(time.Minute)},
		{RoomKey: 3, RoomID: "quiet-new"},
		{RoomKey: 4, RoomID: "busy-latest", LastMessageAt: at(time.Hour)},
		{RoomKey: 5, RoomID: "tie-newer", LastMessageAt: at(time.Minute)},
	}

	SortMyRooms(rooms)

	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.RoomID)
	}
	req.Equal([]string{"busy-latest", "tie-newer", "busy-earlier", "quiet-new", "quiet-old"}, ids)
}

func TestMyRooms_OrderAndVisibility(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()

	// Given three rooms for B, one of them later left, and one deleted room
	first := f.roomWithMembers(t, "A", "B")
	second := f.roomWithMembers(t, "A", "B")
	third := f.roomWithMembers(t, "A", "B")
	left := f.roomWithMembers(t, "A", "B")
	deleted := f.roomWithMembers(t, "A", "B")
	req.NoError(f.chat.Leave(ctx, left.ID, "B"))
	req.NoError(f.chat.DeleteRoom(ctx, deleted.ID, "A"))

	// Given the first room got a message after the third
	f.send(t, third.ID, "A", "older")
	time.Sleep(2 * time.Millisecond)
	f.send(t, first.ID, "A", "newer")

	// When B lists rooms
	rooms, err := f.chat.MyRooms(ctx, "B")
	req.NoError(err)

	// Then rooms with messages come first, newest activity first, then the rest newest first
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.RoomID)
		req.Equal(model.RoleMember, r.MyRole)
	}
	req.Equal([]string{first.ID, third.ID, second.ID}, ids)
	req.NotNil(rooms[0].LastMessageAt)
	req.Nil(rooms[2].LastMessageAt)
}

func TestMyRooms_IgnoresDeletedMessagesForActivity(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")
	msg := f.send(t, room.ID, "A", "oops")
	req.NoError(f.chat.DeleteMessage(ctx, room.ID, "A", msg.MessageID))

	rooms, err := f.chat.MyRooms(ctx, "A")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Nil(rooms[0].LastMessageAt)
}
