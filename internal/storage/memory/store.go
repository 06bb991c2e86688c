package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

type memberKey struct {
	roomKey int64
	userID  string
}

type tokenKey struct {
	roomKey  int64
	senderID string
	token    string
}

type msgRef struct {
	roomKey int64
	pos     int
}

type state struct {
	roomSeq   int64
	memberSeq int64
	msgSeq    int64

	rooms     map[int64]model.Room
	roomIndex map[string]int64
	members   map[memberKey]model.Membership
	// сообщения комнаты по возрастанию Key; позиции стабильны, строки не удаляются
	messages map[int64][]model.Message
	msgByID  map[string]msgRef
	msgByKey map[int64]msgRef
	tokens   map[tokenKey]int64
}

func newState() *state {
	return &state{
		rooms:     make(map[int64]model.Room),
		roomIndex: make(map[string]int64),
		members:   make(map[memberKey]model.Membership),
		messages:  make(map[int64][]model.Message),
		msgByID:   make(map[string]msgRef),
		msgByKey:  make(map[int64]msgRef),
		tokens:    make(map[tokenKey]int64),
	}
}

func (st *state) clone() *state {
	c := *st
	c.rooms = maps.Clone(st.rooms)
	c.roomIndex = maps.Clone(st.roomIndex)
	c.members = maps.Clone(st.members)
	c.msgByID = maps.Clone(st.msgByID)
	c.msgByKey = maps.Clone(st.msgByKey)
	c.tokens = maps.Clone(st.tokens)
	c.messages = make(map[int64][]model.Message, len(st.messages))
	for k, v := range st.messages {
		c.messages[k] = slices.Clone(v)
	}
	return &c
}

// Store — in-memory реализация storage.Store (тесты и запуск с -memory без Postgres).
// Транзакция держит мьютекс целиком и откатывается к снимку состояния при ошибке.
type Store struct {
	mu *sync.Mutex
	st *state
	tx bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Rooms() storage.RoomStore          { return roomStore{s} }
func (s *Store) Members() storage.MemberStore      { return memberStore{s} }
func (s *Store) Messages() storage.MessageStore    { return messageStore{s} }
func (s *Store) Directory() storage.DirectoryStore { return directoryStore{s} }

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.tx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: s.st, tx: true}); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

type roomStore struct{ s *Store }

func (r roomStore) Create(ctx context.Context, room *model.Room) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.roomIndex[room.ID]; ok {
		return storage.ErrConflict
	}
	st.roomSeq++
	room.Key = st.roomSeq
	st.rooms[room.Key] = *room
	st.roomIndex[room.ID] = room.Key
	return nil
}

func (r roomStore) GetByExternalID(ctx context.Context, id string) (*model.Room, error) {
	defer r.s.lock()()
	key, ok := r.s.st.roomIndex[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	room := r.s.st.rooms[key]
	return &room, nil
}

func (r roomStore) MarkDeleted(ctx context.Context, key int64) (bool, error) {
	defer r.s.lock()()
	room, ok := r.s.st.rooms[key]
	if !ok {
		return false, storage.ErrNotFound
	}
	if room.Status == model.RoomStatusDeleted {
		return false, nil
	}
	room.Status = model.RoomStatusDeleted
	r.s.st.rooms[key] = room
	return true, nil
}

type memberStore struct{ s *Store }

func (m memberStore) Create(ctx context.Context, mem *model.Membership) (bool, error) {
	defer m.s.lock()()
	st := m.s.st
	k := memberKey{mem.RoomKey, mem.UserID}
	if _, ok := st.members[k]; ok {
		return false, nil
	}
	st.memberSeq++
	mem.Key = st.memberSeq
	st.members[k] = *mem
	return true, nil
}

func (m memberStore) Get(ctx context.Context, roomKey int64, userID string) (*model.Membership, error) {
	defer m.s.lock()()
	mem, ok := m.s.st.members[memberKey{roomKey, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &mem, nil
}

func (m memberStore) Leave(ctx context.Context, roomKey int64, userID string, at time.Time) (bool, error) {
	defer m.s.lock()()
	k := memberKey{roomKey, userID}
	mem, ok := m.s.st.members[k]
	if !ok || !mem.IsActive() {
		return false, nil
	}
	mem.LeftAt = &at
	m.s.st.members[k] = mem
	return true, nil
}

func (m memberStore) LeaveAll(ctx context.Context, roomKey int64, at time.Time) (int64, error) {
	defer m.s.lock()()
	var n int64
	for k, mem := range m.s.st.members {
		if k.roomKey != roomKey || !mem.IsActive() {
			continue
		}
		mem.LeftAt = &at
		m.s.st.members[k] = mem
		n++
	}
	return n, nil
}

func (m memberStore) ActiveUserIDs(ctx context.Context, roomKey int64) ([]string, error) {
	defer m.s.lock()()
	ids := make([]string, 0, 8)
	for k, mem := range m.s.st.members {
		if k.roomKey == roomKey && mem.IsActive() {
			ids = append(ids, k.userID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memberStore) MarkRead(ctx context.Context, roomKey int64, userID string, messageKey int64, at time.Time) error {
	defer m.s.lock()()
	k := memberKey{roomKey, userID}
	mem, ok := m.s.st.members[k]
	if !ok {
		return storage.ErrNotFound
	}
	if mem.LastReadMessageKey != nil && *mem.LastReadMessageKey >= messageKey {
		return nil
	}
	mem.LastReadMessageKey = &messageKey
	mem.LastReadAt = &at
	m.s.st.members[k] = mem
	return nil
}

type messageStore struct{ s *Store }

func (ms messageStore) Append(ctx context.Context, m *model.Message) (*model.Message, bool, error) {
	defer ms.s.lock()()
	st := ms.s.st
	var tk tokenKey
	if m.ClientToken != nil {
		tk = tokenKey{m.RoomKey, m.SenderID, *m.ClientToken}
		if key, ok := st.tokens[tk]; ok {
			ref := st.msgByKey[key]
			existing := st.messages[ref.roomKey][ref.pos]
			return &existing, false, nil
		}
	}
	if _, ok := st.msgByID[m.ID]; ok {
		return nil, false, storage.ErrConflict
	}
	st.msgSeq++
	m.Key = st.msgSeq
	ref := msgRef{roomKey: m.RoomKey, pos: len(st.messages[m.RoomKey])}
	st.messages[m.RoomKey] = append(st.messages[m.RoomKey], *m)
	st.msgByID[m.ID] = ref
	st.msgByKey[m.Key] = ref
	if m.ClientToken != nil {
		st.tokens[tk] = m.Key
	}
	stored := *m
	return &stored, true, nil
}

func (ms messageStore) FindActive(ctx context.Context, roomKey int64, id string) (*model.Message, error) {
	defer ms.s.lock()()
	ref, ok := ms.s.st.msgByID[id]
	if !ok || ref.roomKey != roomKey {
		return nil, storage.ErrNotFound
	}
	m := ms.s.st.messages[ref.roomKey][ref.pos]
	if m.IsDeleted() {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (ms messageStore) Page(ctx context.Context, roomKey int64, before *int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}
	defer ms.s.lock()()
	msgs := ms.s.st.messages[roomKey]
	end := len(msgs)
	if before != nil {
		end = sort.Search(len(msgs), func(i int) bool { return msgs[i].Key >= *before })
	}
	out := make([]model.Message, 0, min(limit, end))
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		if msgs[i].IsDeleted() {
			continue
		}
		out = append(out, msgs[i])
	}
	return out, nil
}

func (ms messageStore) SoftDelete(ctx context.Context, key int64, at time.Time) (bool, error) {
	defer ms.s.lock()()
	ref, ok := ms.s.st.msgByKey[key]
	if !ok {
		return false, storage.ErrNotFound
	}
	m := &ms.s.st.messages[ref.roomKey][ref.pos]
	if m.IsDeleted() {
		return false, nil
	}
	m.DeletedAt = &at
	return true, nil
}

type directoryStore struct{ s *Store }

// MyRooms не сортирует результат: порядок задаёт service.SortMyRooms.
func (d directoryStore) MyRooms(ctx context.Context, userID string) ([]model.MyRoom, error) {
	defer d.s.lock()()
	st := d.s.st
	out := make([]model.MyRoom, 0, 8)
	for k, mem := range st.members {
		if k.userID != userID || !mem.IsActive() {
			continue
		}
		room, ok := st.rooms[k.roomKey]
		if !ok || room.IsDeleted() {
			continue
		}
		out = append(out, model.MyRoom{
			RoomKey:       room.Key,
			RoomID:        room.ID,
			Title:         room.Title,
			MyRole:        mem.Role,
			LastMessageAt: lastMessageAt(st.messages[room.Key]),
		})
	}
	return out, nil
}

func lastMessageAt(msgs []model.Message) *time.Time {
	var last *time.Time
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsDeleted() {
			continue
		}
		if last == nil || msgs[i].CreatedAt.After(*last) {
			t := msgs[i].CreatedAt
			last = &t
		}
	}
	return last
}
