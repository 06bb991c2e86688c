package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	pushKeyPrefix       = "push:subs:"
	MaxPushSubsPerUser  = 10
	PushSubscriptionTTL = 30 * 24 * time.Hour
)

// PushSubscription — подписка браузера на Web Push.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// AddPushSubscription хранит не больше MaxPushSubsPerUser последних подписок пользователя.
func (c *Client) AddPushSubscription(ctx context.Context, userID string, sub PushSubscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("push subscription encode: %w", err)
	}
	key := pushKeyPrefix + userID
	// старая запись с тем же endpoint заменяется новой
	if err := c.RemovePushSubscription(ctx, userID, sub.Endpoint); err != nil {
		return err
	}
	pipe := c.cli.TxPipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -MaxPushSubsPerUser, -1)
	pipe.Expire(ctx, key, PushSubscriptionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push subscription save: %w", err)
	}
	return nil
}

func (c *Client) PushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	list, err := c.cli.LRange(ctx, pushKeyPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("push subscriptions: %w", err)
	}
	subs := make([]PushSubscription, 0, len(list))
	for _, item := range list {
		var sub PushSubscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// RemovePushSubscription удаляет записи с данным endpoint через LREM, не переписывая список.
func (c *Client) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	key := pushKeyPrefix + userID
	list, err := c.cli.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("push subscriptions: %w", err)
	}
	for _, item := range list {
		var sub PushSubscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == endpoint {
			if err := c.cli.LRem(ctx, key, 0, item).Err(); err != nil {
				return fmt.Errorf("push subscription remove: %w", err)
			}
		}
	}
	return nil
}
