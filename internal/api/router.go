package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/focusguard/internal/notesvc"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced on everything
// except /ping. sseHandler, if non-nil, is mounted at GET /events, where
// the token may also come as ?access_token=.
func NewRouter(svc *notesvc.Service, authEnabled bool, token, corsOrigin string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(CORS(corsOrigin))

	r.Get("/ping", h.Ping)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Daily notes.
		r.Get("/note", h.Today)
		r.Post("/note", h.SaveToday)
		r.Get("/note/{date}", h.Note)
		r.Post("/note/{date}", h.Save)
		r.Get("/note/{date}/blocks", h.Blocks)

		r.Get("/streak", h.Streak)
		r.Get("/config", h.Config)

		r.Get("/tasks", h.Tasks)
		r.Post("/tasks", h.AddTask)

		r.Get("/search", h.Search)
	})

	if sseHandler != nil {
		r.With(AuthMiddleware(authEnabled, token, WithQueryToken("access_token"))).
			Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
