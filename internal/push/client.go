// Package push — клиент микросервиса Web Push и управление VAPID-ключами.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/groupchat/internal/logger"
)

// Client ходит в микросервис пуш-уведомлений. Пустой baseURL — все методы no-op.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled — задан ли адрес push-сервиса.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

// PushSubscription — подписка из браузера (PushManager.getSubscription()).
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type subscribeRequest struct {
	UserID       string           `json:"user_id"`
	Subscription PushSubscription `json:"subscription"`
}

type unsubscribeRequest struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
}

// NotifyRequest — тело POST /api/notify.
type NotifyRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// call отправляет JSON и ждёт 204 No Content.
func (c *Client) call(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push %s %s: encode: %w", method, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("push %s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, userID string, sub PushSubscription) error {
	if !c.Enabled() {
		return nil
	}
	return c.call(ctx, http.MethodPost, "/api/subscribe", subscribeRequest{UserID: userID, Subscription: sub})
}

func (c *Client) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if !c.Enabled() {
		return nil
	}
	return c.call(ctx, http.MethodDelete, "/api/subscribe", unsubscribeRequest{UserID: userID, Endpoint: endpoint})
}

// Notify — fire-and-forget уведомление участнику комнаты о новом сообщении; ошибки только логируются.
func (c *Client) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	if !c.Enabled() {
		return
	}
	defer logger.DeferLogDuration("push.Notify", time.Now())()
	if err := c.call(ctx, http.MethodPost, "/api/notify", NotifyRequest{UserID: userID, Title: title, Body: body, Data: data}); err != nil {
		logger.Warnf("%v (user=%s)", err, userID)
	}
}
