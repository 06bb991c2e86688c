package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/groupchat/internal/metrics"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter — токен-бакет на ключ (IP или user_id); давно не виденные ключи вычищаются.
type keyedLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &keyedLimiter{visitors: make(map[string]*visitor), limit: rate.Limit(rps), burst: burst, lastSweep: time.Now()}
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := time.Now()
	if now.Sub(k.lastSweep) > time.Minute {
		for key, v := range k.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(k.visitors, key)
			}
		}
		k.lastSweep = now
	}
	v, ok := k.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimiter ограничивает запросы по IP (до авторизации) и по user_id (после). 429 при превышении.
// rps <= 0 отключает соответствующий лимит.
type RateLimiter struct {
	byIP   *keyedLimiter
	byUser *keyedLimiter
}

func NewRateLimiter(ipRPS float64, ipBurst int, userRPS float64, userBurst int) *RateLimiter {
	l := &RateLimiter{}
	if ipRPS > 0 {
		l.byIP = newKeyedLimiter(ipRPS, ipBurst)
	}
	if userRPS > 0 {
		l.byUser = newKeyedLimiter(userRPS, userBurst)
	}
	return l
}

func clientIP(r *http.Request) string {
	// chi RealIP уже переписал RemoteAddr из X-Real-Ip / X-Forwarded-For
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *RateLimiter) ByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.byIP != nil && !l.byIP.allow(clientIP(r)) {
			metrics.RateLimitHits.WithLabelValues("ip").Inc()
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) ByUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := GetUserID(r.Context()); userID != "" && l.byUser != nil && !l.byUser.allow(userID) {
			metrics.RateLimitHits.WithLabelValues("user").Inc()
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
