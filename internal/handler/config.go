package handler

import (
	"net/http"

	"github.com/groupchat/internal/config"
	"github.com/groupchat/internal/service"
)

// ConfigHandler отдаёт публичные параметры конфигурации клиенту (без авторизации).
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler создаёт обработчик конфигурации.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetPushConfig возвращает публичный VAPID-ключ для подписки на пуши (если включены).
func (h *ConfigHandler) GetPushConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Push.ServiceURL == "" || h.cfg.Push.VAPIDPublicKey == "" {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"vapid_public_key": h.cfg.Push.VAPIDPublicKey,
	})
}

// GetChatConfig — лимиты, которые клиенту полезно знать заранее.
func (h *ConfigHandler) GetChatConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"defaultPageSize":  service.DefaultPageSize,
		"maxPageSize":      service.MaxPageSize,
		"MaxContentLength": service.MaxContentLength,
		"MaxTitleLength":   service.MaxTitleLength,
		"maxRoomsPerConn":  h.cfg.WS.MaxRoomsPerConn,
	})
}
