package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/aihub-client/internal/devserver/http/handlers"
	"github.com/pribylovaa/aihub-client/internal/devserver/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// Registerer — куда регистрировать HTTP-метрики; nil — не регистрировать.
	Registerer prometheus.Registerer
}

// NewRouter собирает http.Handler dev-сервера.
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Instrument(opts.Registerer),
	)

	root.Route("/api/v1", func(r chi.Router) {
		registerRoutes(r, h, opts.Timeout)
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
// Потоковые маршруты живут вне общего дедлайна.
func registerRoutes(r chi.Router, h *handlers.Handlers, timeout time.Duration) {
	authn := middleware.Authenticate(h.Auth, false)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		// auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)
		r.Post("/auth/logout", h.Logout)
		r.With(authn).Get("/auth/me", h.Me)

		// papers
		r.Get("/papers/", h.ListPapers)
		r.Get("/papers/search", h.SearchPapers)
		r.Get("/papers/arxiv/{arxiv_id}", h.GetPaperByArxivID)
		r.Get("/papers/{id}", h.GetPaper)

		r.Group(func(r chi.Router) {
			r.Use(authn)

			// favorites
			r.Post("/papers/{id}/favorite", h.AddFavorite)
			r.Delete("/papers/{id}/favorite", h.RemoveFavorite)
			r.Get("/papers/{id}/favorite/status", h.FavoriteStatus)

			// notes
			r.Post("/notes/", h.CreateNote)
			r.Get("/notes/", h.ListNotes)
			r.Get("/notes/{id}", h.GetNote)
			r.Put("/notes/{id}", h.UpdateNote)
			r.Delete("/notes/{id}", h.DeleteNote)

			// ai
			r.Post("/ai/summarize/sync", h.SummarizeSync)

			// recommendations
			r.Get("/recommendations/papers", h.Recommendations)
			r.Post("/recommendations/refresh", h.RefreshRecommendations)
			r.Get("/recommendations/status", h.RecommendationStatus)
		})

		// system
		r.Get("/system/health", h.Health)
	})

	// streams
	r.With(authn).Post("/ai/chat", h.Chat)
	r.With(middleware.Authenticate(h.Auth, true)).Get("/events", h.Events)
}
