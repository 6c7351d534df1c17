package tier

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perkhub/loyalty-api/internal/middleware"
)

// Routes returns the public tier routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// AdminRoutes returns the staff tier-management routes.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRole(middleware.RoleAdmin))
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Deactivate)
	return r
}
