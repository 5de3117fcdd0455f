package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qrloyalty/token-service/internal/service"
	"github.com/qrloyalty/token-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger *slog.Logger
	// Timeout — общий дедлайн запроса; <=0 отключает.
	Timeout time.Duration
	// AllowedOrigin — значение Access-Control-Allow-Origin ("" => "*").
	AllowedOrigin string
	// RateLimit/RateWindow — бюджет процессного лимитера; Limit<=0 отключает.
	RateLimit  int
	RateWindow time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	var limiter *middleware.RateLimiter
	if opts.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow)
	}

	// Middleware (внешний -> внутренний). CORS стоит до лимитера,
	// чтобы preflight не расходовал бюджет клиента.
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.CORS(opts.AllowedOrigin),
		middleware.RateLimit(limiter),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	h := NewHandlers(svc)

	root.Post("/auth/refresh-token", h.RefreshToken)
	root.Post("/auth/verify-token", h.VerifyToken)
	root.Post("/auth/revoke-token", h.RevokeToken)

	return root
}
