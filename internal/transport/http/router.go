package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Sorcerer785/ThoughtSphere/internal/config"
	"github.com/Sorcerer785/ThoughtSphere/internal/service"
	"github.com/Sorcerer785/ThoughtSphere/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Cookie  config.CookieConfig
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := NewHandlers(svc, opts.Cookie)

	root.Post("/auth/register", h.Register)
	root.Post("/auth/login", h.Login)
	root.Post("/auth/refresh", h.Refresh)
	root.Post("/auth/logout", h.Logout)
	root.Post("/auth/logout-all", h.LogoutAll)

	// Защищённые маршруты: guard чисто вычислительный (подпись+срок),
	// путь refresh на их латентность не влияет.
	root.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(svc))
		r.Get("/auth/me", h.Me)
	})

	return root
}
