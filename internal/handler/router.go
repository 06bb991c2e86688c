package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groupchat/internal/config"
	"github.com/groupchat/internal/middleware"
)

// Deps — всё, из чего собирается HTTP-поверхность API.
type Deps struct {
	Config      *config.Config
	Rooms       *RoomHandler
	WS          *WSHandler
	Push        *PushHandler
	Auth        func(http.Handler) http.Handler
	RateLimiter *middleware.RateLimiter
	Health      func(*http.Request) error
}

// NewRouter собирает chi-роутер: общий стек middleware, публичные маршруты и группа за авторизацией.
func NewRouter(d Deps) http.Handler {
	configH := NewConfigHandler(d.Config)
	rl := d.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(0, 0, 0, 0)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Compress ломает Hijack для WebSocket
	r.Use(func(next http.Handler) http.Handler {
		compressed := chimw.Compress(5)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compressed.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Session-Id", "X-Timestamp", "X-Signature"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.With(middleware.InternalOnly(d.Config.MetricsSecret)).Handle("/metrics", promhttp.Handler())
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/config/chat", configH.GetChatConfig)

	r.Group(func(r chi.Router) {
		r.Use(rl.ByIP)
		r.Use(d.Auth)
		r.Use(rl.ByUser)
		r.Mount("/api/chat/rooms", d.Rooms.Routes())
		if d.Push != nil {
			r.Post("/api/push/subscribe", d.Push.Subscribe)
			r.Delete("/api/push/subscribe", d.Push.Unsubscribe)
		}
		r.Get("/ws", d.WS.ServeWS)
	})
	return r
}
