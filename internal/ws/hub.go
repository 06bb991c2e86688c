package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/metrics"
	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/service"
)

const (
	commandTimeout        = 5 * time.Second
	defaultMaxConns       = 10000
	defaultMaxRoomsPerCon = 256
)

// Commands — операции, которые клиент может выполнить через сокет. Реализует *service.Gateway.
type Commands interface {
	SendMessage(ctx context.Context, cmd service.SendCommand) (*model.MessageView, error)
	AuthorizeSubscribe(ctx context.Context, roomID, userID string) error
}

// Hub хранит подключения и подписки на комнаты этого процесса и доставляет им события.
// Реализует service.Broadcaster для режима без Redis.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{} // userID -> connections
	rooms    map[string]map[*Client]struct{} // roomID -> subscribers
	total    int
	maxConns int
	maxRooms int
	commands Commands

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(commands Commands, maxConns, maxRoomsPerConn int) *Hub {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if maxRoomsPerConn <= 0 {
		maxRoomsPerConn = defaultMaxRoomsPerCon
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		maxRooms:   maxRoomsPerConn,
		commands:   commands,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// SetCommands нужен, когда Gateway создаётся после Hub (Hub — его Broadcaster).
func (h *Hub) SetCommands(c Commands) {
	h.mu.Lock()
	h.commands = c
	h.mu.Unlock()
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	subs := 0
	for _, set := range h.rooms {
		subs += len(set)
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	metrics.WSConnections.Sub(float64(h.total))
	metrics.RoomSubscriptions.Sub(float64(subs))
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	// Unregister мог быть обработан раньше Register: закрытый клиент не возвращаем в реестр.
	if c.closed() {
		dropped := h.dropAllLocked(c)
		h.mu.Unlock()
		metrics.RoomSubscriptions.Sub(float64(dropped))
		return
	}
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logger.Debugf("ws connected user=%s conn=%s", c.userID, c.id)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	registered := false
	if clients, ok := h.clients[c.userID]; ok {
		if _, registered = clients[c]; registered {
			delete(clients, c)
			h.total--
			if len(clients) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
	// подписки снимаются и у незарегистрированного клиента
	dropped := h.dropAllLocked(c)
	h.mu.Unlock()

	if registered {
		metrics.WSConnections.Dec()
	}
	metrics.RoomSubscriptions.Sub(float64(dropped))
	// Network I/O outside the lock.
	c.Close()
	logger.Debugf("ws disconnected user=%s conn=%s", c.userID, c.id)
}

// dropAllLocked снимает все подписки c. Вызывать под h.mu.
func (h *Hub) dropAllLocked(c *Client) int {
	dropped := 0
	for roomID := range c.rooms {
		if h.dropLocked(roomID, c) {
			dropped++
		}
	}
	return dropped
}

// dropLocked убирает подписку c на комнату. Вызывать под h.mu.
func (h *Hub) dropLocked(roomID string, c *Client) bool {
	set, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	delete(c.rooms, roomID)
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// Subscribe добавляет подписку; false — превышен лимит комнат на соединение.
// Повторная подписка ничего не меняет.
func (h *Hub) Subscribe(roomID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed() {
		return false
	}
	if _, ok := c.rooms[roomID]; ok {
		return true
	}
	if len(c.rooms) >= h.maxRooms {
		return false
	}
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[roomID] = set
	}
	set[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	metrics.RoomSubscriptions.Inc()
	return true
}

func (h *Hub) Unsubscribe(roomID string, c *Client) {
	h.mu.Lock()
	dropped := h.dropLocked(roomID, c)
	h.mu.Unlock()
	if dropped {
		metrics.RoomSubscriptions.Dec()
	}
}

// Subscribers — число подписчиков комнаты на этом процессе.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Publish доставляет событие текущим подписчикам комнаты без ожидания: медленный клиент
// отключается, пропущенные события не повторяются. member_removed снимает подписки
// удалённого пользователя, room_deleted — все подписки комнаты.
func (h *Hub) Publish(_ context.Context, ev model.RoomEvent) error {
	defer logger.DeferLogDuration("ws.Publish", time.Now())()
	out, ok := eventMessage(ev)
	if !ok {
		logger.Warnf("ws publish: unknown event type %q room=%s", ev.Type, ev.RoomID)
		return nil
	}

	h.mu.RLock()
	set := h.rooms[ev.RoomID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, out)
	}

	switch ev.Type {
	case model.RoomEventMemberRemoved:
		h.dropUser(ev.RoomID, ev.UserID)
	case model.RoomEventRoomDeleted:
		h.dropRoom(ev.RoomID)
	}
	return nil
}

func (h *Hub) dropUser(roomID, userID string) {
	h.mu.Lock()
	dropped := 0
	for c := range h.clients[userID] {
		if h.dropLocked(roomID, c) {
			dropped++
		}
	}
	h.mu.Unlock()
	metrics.RoomSubscriptions.Sub(float64(dropped))
}

func (h *Hub) dropRoom(roomID string) {
	h.mu.Lock()
	set := h.rooms[roomID]
	dropped := len(set)
	for c := range set {
		delete(c.rooms, roomID)
	}
	delete(h.rooms, roomID)
	h.mu.Unlock()
	metrics.RoomSubscriptions.Sub(float64(dropped))
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(ctx, c, msg)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case EventSend:
		h.handleSend(ctx, c, msg)
	case EventPing:
		h.sendToClient(c, OutgoingMessage{Type: EventPong})
	default:
		h.sendToClient(c, invalidFrame("unknown event type"))
	}
}

func (h *Hub) currentCommands() Commands {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.commands
}

func (h *Hub) handleSubscribe(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSubscribe", time.Now())()
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		h.sendToClient(c, invalidFrame("roomId required"))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmds := h.currentCommands()
	if err := cmds.AuthorizeSubscribe(ctx, roomID, c.userID); err != nil {
		h.sendToClient(c, errorMessage(err))
		return
	}
	if !h.Subscribe(roomID, c) {
		h.sendToClient(c, invalidFrame("too many subscriptions"))
		return
	}
	// Повторная проверка после подписки: если участника исключили между проверкой и
	// подпиской, member_removed мог пройти мимо этого соединения.
	if err := cmds.AuthorizeSubscribe(ctx, roomID, c.userID); err != nil {
		h.Unsubscribe(roomID, c)
		h.sendToClient(c, errorMessage(err))
		return
	}
	h.sendToClient(c, OutgoingMessage{Type: EventSubscribed, Payload: RoomPayload{RoomID: roomID}})
}

func (h *Hub) handleUnsubscribe(c *Client, msg IncomingMessage) {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		h.sendToClient(c, invalidFrame("roomId required"))
		return
	}
	h.Unsubscribe(roomID, c)
	h.sendToClient(c, OutgoingMessage{Type: EventUnsubscribed, Payload: RoomPayload{RoomID: roomID}})
}

func (h *Hub) handleSend(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleSend", time.Now())()
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	view, err := h.currentCommands().SendMessage(ctx, service.SendCommand{
		RoomID:      strings.TrimSpace(msg.RoomID),
		SenderID:    c.userID,
		Content:     msg.Content,
		ClientToken: msg.ClientToken,
	})
	if err != nil {
		if service.CodeOf(err) == service.CodeInternal {
			logger.Errorf("ws send room=%s user=%s: %v", msg.RoomID, c.userID, err)
		}
		h.sendToClient(c, errorMessage(err))
		return
	}
	h.sendToClient(c, OutgoingMessage{Type: EventSent, Payload: *view})
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		metrics.DeliveriesDropped.Inc()
		logger.Errorf("ws send buffer full, closing slow client user=%s conn=%s", c.userID, c.id)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
