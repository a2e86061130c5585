// Package api — HTTP-интерфейс сервиса: посты, сбор урожая, балансы, квота
// и служебные маршруты.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Noospaceio/v19/internal/features/admin"
	"github.com/Noospaceio/v19/internal/features/feed"
	"github.com/Noospaceio/v19/internal/features/harvest"
	"github.com/Noospaceio/v19/internal/features/ledger"
	"github.com/Noospaceio/v19/internal/features/posting"
)

// Заголовки запросов
const (
	headerSessionID     = "X-Session-ID"
	headerAdminPassword = "X-Admin-Password"
)

// RemoteStatus сообщает, настроено ли удалённое хранилище. Реализуется шлюзом.
type RemoteStatus interface {
	RemoteConfigured() bool
}

// Deps — сервисы, которые обслуживает HTTP-интерфейс.
type Deps struct {
	Remote  RemoteStatus
	Ledger  *ledger.Ledger
	Harvest *harvest.Service
	Feed    *feed.Service
	Posting *posting.Service
	Admin   *admin.Service
}

// Options — настройки HTTP-интерфейса.
type Options struct {
	RequestTimeout    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MetricsEnabled    bool
}

// Server — HTTP API сервиса.
type Server struct {
	deps    Deps
	opts    Options
	limiter *RateLimiter
}

// NewServer создаёт сервер. Close освобождает фоновые ресурсы.
func NewServer(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		deps:    deps,
		opts:    opts,
		limiter: NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
	}
}

// Close останавливает лимитер запросов.
func (s *Server) Close() {
	s.limiter.Close()
}

// Handler возвращает chi-роутер со всеми маршрутами.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverPanic)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, map[string]any{
			"status": "ok",
			"remote": s.deps.Remote.RemoteConfigured(),
		})
	})

	if s.opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.limiter))

		// Метод проверяется в обработчике: ответ 405 должен быть в формате API
		r.HandleFunc("/harvest", s.handleHarvest)

		r.Get("/posts", s.handleListPosts)
		r.Post("/posts", s.handleCreatePost)
		r.Post("/posts/{id}/resonate", s.handleResonate)
		r.Post("/posts/{id}/sacrifice", s.handleSacrifice)

		r.Get("/wallets/{wallet}", s.handleWallet)
		r.Get("/quota", s.handleQuota)

		r.Post("/admin/sweep", s.handleSweep)
	})

	return r
}
