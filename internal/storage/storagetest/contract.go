// Package storagetest — общий контракт storage.Store: один набор проверок для памяти и Postgres.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

// Run прогоняет контракт; newStore вызывается на каждый подтест.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("room lifecycle", func(t *testing.T) { roomLifecycle(t, newStore(t)) })
	t.Run("membership is never reactivated", func(t *testing.T) { membership(t, newStore(t)) })
	t.Run("message page and soft delete", func(t *testing.T) { messages(t, newStore(t)) })
	t.Run("client token dedupe", func(t *testing.T) { clientToken(t, newStore(t)) })
	t.Run("transaction rollback", func(t *testing.T) { rollback(t, newStore(t)) })
	t.Run("directory", func(t *testing.T) { directory(t, newStore(t)) })
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func createRoom(t *testing.T, s storage.Store, owner string) *model.Room {
	t.Helper()
	ctx := context.Background()
	room := &model.Room{ID: uuid.Must(uuid.NewV7()).String(), Title: "general", Status: model.RoomStatusActive, CreatedAt: now()}
	require.NoError(t, s.Rooms().Create(ctx, room))
	require.NotZero(t, room.Key)
	created, err := s.Members().Create(ctx, &model.Membership{RoomKey: room.Key, UserID: owner, Role: model.RoleOwner, JoinedAt: now()})
	require.NoError(t, err)
	require.True(t, created)
	return room
}

func appendMessage(t *testing.T, s storage.Store, room *model.Room, sender, content string, token *string) *model.Message {
	t.Helper()
	m := &model.Message{ID: ulid.Make().String(), RoomKey: room.Key, SenderID: sender, Content: content, ClientToken: token, CreatedAt: now()}
	got, inserted, err := s.Messages().Append(context.Background(), m)
	require.NoError(t, err)
	if token == nil {
		require.True(t, inserted)
	}
	return got
}

func user() string { return "u-" + uuid.NewString() }

func roomLifecycle(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	room := createRoom(t, s, user())

	got, err := s.Rooms().GetByExternalID(ctx, room.ID)
	req.NoError(err)
	req.Equal(room.Key, got.Key)
	req.False(got.IsDeleted())

	_, err = s.Rooms().GetByExternalID(ctx, uuid.NewString())
	req.ErrorIs(err, storage.ErrNotFound)

	changed, err := s.Rooms().MarkDeleted(ctx, room.Key)
	req.NoError(err)
	req.True(changed)
	changed, err = s.Rooms().MarkDeleted(ctx, room.Key)
	req.NoError(err)
	req.False(changed)

	got, err = s.Rooms().GetByExternalID(ctx, room.ID)
	req.NoError(err)
	req.True(got.IsDeleted())
}

func membership(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	owner, member := user(), user()
	room := createRoom(t, s, owner)

	created, err := s.Members().Create(ctx, &model.Membership{RoomKey: room.Key, UserID: member, Role: model.RoleMember, JoinedAt: now()})
	req.NoError(err)
	req.True(created)

	ids, err := s.Members().ActiveUserIDs(ctx, room.Key)
	req.NoError(err)
	req.ElementsMatch([]string{owner, member}, ids)

	// leave дважды: второй раз ничего не меняет
	left, err := s.Members().Leave(ctx, room.Key, member, now())
	req.NoError(err)
	req.True(left)
	left, err = s.Members().Leave(ctx, room.Key, member, now())
	req.NoError(err)
	req.False(left)

	// повторная вставка не возвращает участника
	created, err = s.Members().Create(ctx, &model.Membership{RoomKey: room.Key, UserID: member, Role: model.RoleMember, JoinedAt: now()})
	req.NoError(err)
	req.False(created)
	m, err := s.Members().Get(ctx, room.Key, member)
	req.NoError(err)
	req.False(m.IsActive())

	_, err = s.Members().Get(ctx, room.Key, user())
	req.ErrorIs(err, storage.ErrNotFound)

	n, err := s.Members().LeaveAll(ctx, room.Key, now())
	req.NoError(err)
	req.EqualValues(1, n)
	ids, err = s.Members().ActiveUserIDs(ctx, room.Key)
	req.NoError(err)
	req.Empty(ids)
}

func messages(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	sender := user()
	room := createRoom(t, s, sender)
	other := createRoom(t, s, sender)

	var all []*model.Message
	for i := 0; i < 5; i++ {
		all = append(all, appendMessage(t, s, room, sender, "m", nil))
	}
	appendMessage(t, s, other, sender, "foreign", nil)

	deleted, err := s.Messages().SoftDelete(ctx, all[2].Key, now())
	req.NoError(err)
	req.True(deleted)
	deleted, err = s.Messages().SoftDelete(ctx, all[2].Key, now())
	req.NoError(err)
	req.False(deleted)

	page, err := s.Messages().Page(ctx, room.Key, nil, 10)
	req.NoError(err)
	req.Len(page, 4)
	for i := 1; i < len(page); i++ {
		req.Less(page[i].Key, page[i-1].Key)
	}
	req.Equal(all[4].ID, page[0].ID)

	before := all[3].Key
	page, err = s.Messages().Page(ctx, room.Key, &before, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(all[1].ID, page[0].ID)

	_, err = s.Messages().FindActive(ctx, room.Key, all[2].ID)
	req.ErrorIs(err, storage.ErrNotFound)
	_, err = s.Messages().FindActive(ctx, other.Key, all[0].ID)
	req.ErrorIs(err, storage.ErrNotFound)
	found, err := s.Messages().FindActive(ctx, room.Key, all[0].ID)
	req.NoError(err)
	req.Equal(all[0].Key, found.Key)

	req.NoError(s.Members().MarkRead(ctx, room.Key, sender, all[4].Key, now()))
	req.NoError(s.Members().MarkRead(ctx, room.Key, sender, all[0].Key, now()))
	m, err := s.Members().Get(ctx, room.Key, sender)
	req.NoError(err)
	req.NotNil(m.LastReadMessageKey)
	req.Equal(all[4].Key, *m.LastReadMessageKey)
}

func clientToken(t *testing.T, s storage.Store) {
	req := require.New(t)
	sender := user()
	room := createRoom(t, s, sender)
	token := "tok-" + uuid.NewString()

	first := appendMessage(t, s, room, sender, "once", &token)
	m := &model.Message{ID: ulid.Make().String(), RoomKey: room.Key, SenderID: sender, Content: "once", ClientToken: &token, CreatedAt: now()}
	again, inserted, err := s.Messages().Append(context.Background(), m)
	req.NoError(err)
	req.False(inserted)
	req.Equal(first.ID, again.ID)
}

func rollback(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	room := createRoom(t, s, user())
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.Rooms().MarkDeleted(ctx, room.Key); err != nil {
			return err
		}
		return boom
	})
	req.ErrorIs(err, boom)

	got, err := s.Rooms().GetByExternalID(ctx, room.ID)
	req.NoError(err)
	req.False(got.IsDeleted())
}

func directory(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	me := user()
	quiet := createRoom(t, s, me)
	busy := createRoom(t, s, me)
	gone := createRoom(t, s, me)
	msg := appendMessage(t, s, busy, me, "hi", nil)
	_, err := s.Rooms().MarkDeleted(ctx, gone.Key)
	req.NoError(err)

	rooms, err := s.Directory().MyRooms(ctx, me)
	req.NoError(err)
	req.Len(rooms, 2)
	byID := map[string]model.MyRoom{}
	for _, r := range rooms {
		byID[r.RoomID] = r
	}
	req.Contains(byID, quiet.ID)
	req.Nil(byID[quiet.ID].LastMessageAt)
	req.NotNil(byID[busy.ID].LastMessageAt)
	req.WithinDuration(msg.CreatedAt, *byID[busy.ID].LastMessageAt, time.Millisecond)
	req.Equal(model.RoleOwner, byID[busy.ID].MyRole)
}
