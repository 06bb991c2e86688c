package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/metrics"
	"github.com/groupchat/internal/model"
)

const roomChannelPrefix = "groupchat:room:"

// LocalPublisher — доставка подписчикам этого процесса (ws.Hub).
type LocalPublisher interface {
	Publish(ctx context.Context, ev model.RoomEvent) error
}

// Relay рассылает события комнат между инстансами через Redis Pub/Sub.
// Publish отправляет событие в канал комнаты; Run получает события всех комнат
// (включая свои) и отдаёт их локальному хабу. Доставка at-most-once, как и у Pub/Sub.
type Relay struct {
	client *Client
	local  LocalPublisher
}

func NewRelay(client *Client, local LocalPublisher) *Relay {
	return &Relay{client: client, local: local}
}

func roomChannel(roomID string) string { return roomChannelPrefix + roomID }

func encodeEvent(ev model.RoomEvent) ([]byte, error) {
	if ev.RoomID == "" {
		return nil, fmt.Errorf("relay: event %q without room id", ev.Type)
	}
	return json.Marshal(ev)
}

func decodeEvent(channel string, payload []byte) (model.RoomEvent, error) {
	var ev model.RoomEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("relay: decode: %w", err)
	}
	if want := strings.TrimPrefix(channel, roomChannelPrefix); ev.RoomID != want {
		return ev, fmt.Errorf("relay: room %q published on channel %q", ev.RoomID, channel)
	}
	return ev, nil
}

// Publish implements service.Broadcaster. Если Redis недоступен, событие хотя бы
// доставляется подписчикам этого инстанса, а ошибка возвращается вызывающему.
func (r *Relay) Publish(ctx context.Context, ev model.RoomEvent) error {
	defer logger.DeferLogDuration("relay.Publish", time.Now())()
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := r.client.cli.Publish(ctx, roomChannel(ev.RoomID), payload).Err(); err != nil {
		if localErr := r.local.Publish(ctx, ev); localErr != nil {
			logger.Errorf("relay local fallback room=%s: %v", ev.RoomID, localErr)
		}
		return fmt.Errorf("relay.Publish: %w", err)
	}
	metrics.RelayEvents.WithLabelValues("out").Inc()
	return nil
}

// Run слушает каналы всех комнат до отмены ctx.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.cli.PSubscribe(ctx, roomChannelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	logger.Infof("relay subscribed to %s*", roomChannelPrefix)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Channel, []byte(msg.Payload))
			if err != nil {
				logger.Warnf("%v", err)
				continue
			}
			metrics.RelayEvents.WithLabelValues("in").Inc()
			if err := r.local.Publish(ctx, ev); err != nil {
				logger.Errorf("relay deliver room=%s: %v", ev.RoomID, err)
			}
		}
	}
}
