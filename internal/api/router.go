package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the control surface. The legacy endpoints accept GET and
// POST alike.
func NewRouter(h *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/notify.json", h.HandleNotify)
	r.Post("/notify.json", h.HandleNotify)
	r.Get("/switch.json", h.HandleSwitch)
	r.Post("/switch.json", h.HandleSwitch)

	r.Get("/notifications.json", h.HandleNotifications)
	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	return r
}
