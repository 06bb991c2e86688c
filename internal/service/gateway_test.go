package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
)

type recordingPusher struct {
	mu    sync.Mutex
	users []string
	done  chan struct{}
	want  int
}

func (p *recordingPusher) Notify(_ context.Context, userID, title, body string, data map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	if len(p.users) == p.want {
		close(p.done)
	}
}

func TestSendMessage_PublishesView(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	room := f.roomWithMembers(t, "A", "B")

	view := f.send(t, room.ID, "B", "hello")

	req.Equal(room.ID, view.RoomID)
	req.Equal("B", view.SenderID)
	req.Equal("hello", view.Content)
	req.Len(view.MessageID, 26)

	events := f.events.Events()
	req.Len(events, 1)
	req.Equal(model.RoomEventMessage, events[0].Type)
	req.Equal(room.ID, events[0].RoomID)
	req.Equal(*view, *events[0].Message)
}

func TestSendMessage_PublishFailureKeepsMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")

	// Given the broker is down
	f.events.err = errBrokerDown

	// When A sends
	view, err := f.gw.SendMessage(ctx, SendCommand{RoomID: room.ID, SenderID: "A", Content: "still here"})

	// Then the send succeeds and the message is in history
	req.NoError(err)
	page, err := f.chat.History(ctx, HistoryQuery{RoomID: room.ID, RequesterID: "A"})
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(view.MessageID, page[0].MessageID)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A")
	deleted := f.roomWithMembers(t, "A")
	require.NoError(t, f.chat.DeleteRoom(ctx, deleted.ID, "A"))

	tests := []struct {
		name string
		cmd  SendCommand
		code Code
		err  error
	}{
		{name: "blank room", cmd: SendCommand{RoomID: "", SenderID: "A", Content: "x"}, code: CodeInvalidArgument},
		{name: "blank content", cmd: SendCommand{RoomID: room.ID, SenderID: "A", Content: " \n"}, code: CodeInvalidArgument},
		{name: "no identity", cmd: SendCommand{RoomID: room.ID, Content: "x"}, code: CodeUnauthenticated},
		{name: "missing room", cmd: SendCommand{RoomID: "nope", SenderID: "A", Content: "x"}, code: CodeNotFound, err: ErrRoomNotFound},
		{name: "deleted room", cmd: SendCommand{RoomID: deleted.ID, SenderID: "A", Content: "x"}, code: CodeGone, err: ErrRoomDeleted},
		{name: "outsider", cmd: SendCommand{RoomID: room.ID, SenderID: "Z", Content: "x"}, code: CodeForbidden, err: ErrNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gw.SendMessage(ctx, tt.cmd)
			require.Equal(t, tt.code, CodeOf(err))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
	require.Empty(t, f.events.Events()[1:])
}

func TestSendMessage_NotifiesOtherMembers(t *testing.T) {
	req := require.New(t)
	store := newFixture().store
	events := &recordingBroadcaster{}
	pusher := &recordingPusher{done: make(chan struct{}), want: 2}
	chat := NewChatRooms(store, events)
	gw := NewGateway(store, events, pusher)
	ctx := context.Background()

	room, err := chat.CreateRoom(ctx, "A", "team")
	req.NoError(err)
	req.NoError(chat.Invite(ctx, room.ID, "A", "B"))
	req.NoError(chat.Invite(ctx, room.ID, "A", "C"))

	_, err = gw.SendMessage(ctx, SendCommand{RoomID: room.ID, SenderID: "A", Content: "ping"})
	req.NoError(err)

	select {
	case <-pusher.done:
	case <-time.After(time.Second):
		req.Fail("push notifications were not sent")
	}
	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	req.ElementsMatch([]string{"B", "C"}, pusher.users)
}

func TestAuthorizeSubscribe(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	ctx := context.Background()
	room := f.roomWithMembers(t, "A", "B")

	req.NoError(f.gw.AuthorizeSubscribe(ctx, room.ID, "B"))
	req.ErrorIs(f.gw.AuthorizeSubscribe(ctx, room.ID, "Z"), ErrNotMember)

	req.NoError(f.chat.Kick(ctx, room.ID, "A", "B"))
	req.ErrorIs(f.gw.AuthorizeSubscribe(ctx, room.ID, "B"), ErrMemberLeft)
}
