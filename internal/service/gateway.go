package service

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/metrics"
	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

// Broadcaster доставляет событие текущим подписчикам комнаты (at-most-once).
// Реализации: ws.Hub (один процесс), redis.Relay (несколько инстансов).
type Broadcaster interface {
	Publish(ctx context.Context, ev model.RoomEvent) error
}

// PushNotifier отправляет пуш-уведомления. Если nil — пуши не отправляются.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

const (
	pushTimeout    = 10 * time.Second
	pushBodyLength = 120
)

// publish не возвращает ошибку: запись уже зафиксирована, рассылка — best effort.
func publish(ctx context.Context, b Broadcaster, ev model.RoomEvent) {
	if b == nil {
		return
	}
	if err := b.Publish(ctx, ev); err != nil {
		metrics.PublishFailures.Inc()
		logger.Errorf("publish %s room=%s: %v", ev.Type, ev.RoomID, err)
	}
}

// Gateway — путь отправки сообщения: проверка комнаты и участия, запись в журнал,
// рассылка подписчикам и пуши.
type Gateway struct {
	rooms    *Rooms
	members  *Members
	messages *Messages
	events   Broadcaster
	pusher   PushNotifier
}

func NewGateway(store storage.Store, events Broadcaster, pusher PushNotifier) *Gateway {
	return &Gateway{
		rooms:    NewRooms(store),
		members:  NewMembers(store),
		messages: NewMessages(store),
		events:   events,
		pusher:   pusher,
	}
}

type SendCommand struct {
	RoomID      string
	SenderID    string
	Content     string
	ClientToken string
}

// SendMessage сохраняет сообщение и публикует его. Ошибка публикации не откатывает
// запись и не возвращается вызывающему: сообщение остаётся доступно через историю.
func (g *Gateway) SendMessage(ctx context.Context, cmd SendCommand) (*model.MessageView, error) {
	defer logger.DeferLogDuration("gateway.SendMessage", time.Now())()
	if err := requireUser(cmd.SenderID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.RoomID) == "" {
		return nil, invalidArgument("roomId is required")
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, invalidArgument("content is required")
	}
	room, err := g.rooms.GetActive(ctx, cmd.RoomID)
	if err != nil {
		return nil, err
	}
	if _, err := g.members.ValidateActiveMember(ctx, room, cmd.SenderID); err != nil {
		return nil, err
	}
	msg, created, err := g.messages.Append(ctx, room, cmd.SenderID, cmd.Content, cmd.ClientToken)
	if err != nil {
		return nil, err
	}
	view := model.NewMessageView(room.ID, msg)
	if !created {
		metrics.MessagesDeduplicated.Inc()
		return &view, nil
	}
	metrics.MessagesSent.Inc()
	publish(ctx, g.events, model.RoomEvent{Type: model.RoomEventMessage, RoomID: room.ID, Message: &view})
	if g.pusher != nil {
		go g.notifyMembers(room, view)
	}
	return &view, nil
}

// AuthorizeSubscribe — подписаться на комнату может только её активный участник.
func (g *Gateway) AuthorizeSubscribe(ctx context.Context, roomID, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	room, err := g.rooms.GetActive(ctx, roomID)
	if err != nil {
		return err
	}
	_, err = g.members.ValidateActiveMember(ctx, room, userID)
	return err
}

func (g *Gateway) notifyMembers(room *model.Room, view model.MessageView) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	ids, err := g.members.ActiveUserIDs(ctx, room)
	if err != nil {
		logger.Errorf("push members room=%s: %v", room.ID, err)
		return
	}
	body := []rune(view.Content)
	if len(body) > pushBodyLength {
		body = append(body[:pushBodyLength-3], []rune("...")...)
	}
	data := map[string]string{"roomId": room.ID, "messageId": view.MessageID}
	for _, uid := range lo.Without(ids, view.SenderID) {
		g.pusher.Notify(ctx, uid, room.Title, string(body), data)
	}
}
