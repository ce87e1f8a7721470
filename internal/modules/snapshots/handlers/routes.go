package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the snapshot routes on an /api router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/index", h.HandleGetIndex)
	r.Get("/industry", h.HandleGetIndustry)
}
