package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage/memory"
)

// recordingBroadcaster запоминает опубликованные события; err заставляет Publish падать.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []model.RoomEvent
	err    error
}

func (b *recordingBroadcaster) Publish(_ context.Context, ev model.RoomEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroadcaster) Events() []model.RoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.RoomEvent(nil), b.events...)
}

var errBrokerDown = errors.New("broker down")

type fixture struct {
	store  *memory.Store
	events *recordingBroadcaster
	chat   *ChatRooms
	gw     *Gateway
}

func newFixture() *fixture {
	store := memory.New()
	events := &recordingBroadcaster{}
	return &fixture{
		store:  store,
		events: events,
		chat:   NewChatRooms(store, events),
		gw:     NewGateway(store, events, nil),
	}
}

// roomWithMembers создаёт комнату владельца owner и приглашает members.
func (f *fixture) roomWithMembers(t *testing.T, owner string, members ...string) *model.Room {
	t.Helper()
	ctx := context.Background()
	room, err := f.chat.CreateRoom(ctx, owner, "general")
	require.NoError(t, err)
	for _, m := range members {
		require.NoError(t, f.chat.Invite(ctx, room.ID, owner, m))
	}
	return room
}

func (f *fixture) send(t *testing.T, roomID, sender, content string) *model.MessageView {
	t.Helper()
	view, err := f.gw.SendMessage(context.Background(), SendCommand{RoomID: roomID, SenderID: sender, Content: content})
	require.NoError(t, err)
	return view
}

func (f *fixture) membership(t *testing.T, room *model.Room, userID string) *model.Membership {
	t.Helper()
	m, err := f.store.Members().Get(context.Background(), room.Key, userID)
	require.NoError(t, err)
	return m
}
