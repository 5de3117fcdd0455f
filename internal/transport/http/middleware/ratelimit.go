package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter — консультативный процессный лимитер: скользящее окно
// на клиентский ключ (IP). Состояние живёт только в памяти процесса и
// сбрасывается при рестарте — это осознанно, лимитер не является
// границей безопасности.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration

	now func() time.Time
}

// NewRateLimiter создаёт лимитер: limit запросов на ключ в окне window.
// limit <= 0 отключает ограничение.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow регистрирует обращение ключа и сообщает, укладывается ли он в бюджет.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	prev := rl.hits[key]
	fresh := prev[:0]
	for _, t := range prev {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.hits[key] = fresh
		return false
	}

	rl.hits[key] = append(fresh, now)
	return true
}

// RateLimit отвечает 429 при превышении бюджета. nil-лимитер — no-op.
func RateLimit(rl *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey выделяет клиентский ключ: IP без порта.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
