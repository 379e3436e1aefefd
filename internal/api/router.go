package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/sequencer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *readingservice.Service, seq *sequencer.Sequencer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, seq)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/readings", func(r chi.Router) {
		r.Get("/", h.GetReadings)
		r.Get("/local", h.GetLocalReading)
		r.Get("/parsed", h.GetParsedReadings)
	})
	r.Get("/holy-days", h.HolyDays)
	r.Get("/scripture", h.Scripture)
	r.Get("/sunday", h.Sunday)

	// Tools.
	r.Post("/parse", h.Parse)
	r.Post("/compare", h.Compare)

	// Load sequencer.
	r.Post("/load", h.Load)
	r.Get("/state", h.State)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
