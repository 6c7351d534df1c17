package reward

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perkhub/loyalty-api/internal/middleware"
)

// CatalogRoutes returns the reward-catalog routes: a public listing
// plus the authenticated redeem action.
func (h *Handler) CatalogRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListRewards)
	r.With(authMiddleware).Post("/{id}/redeem", h.Redeem)
	return r
}

// RedemptionRoutes returns the authenticated redemption-history routes.
func (h *Handler) RedemptionRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.ListRedemptions)
	r.Get("/{id}", h.GetRedemption)
	r.Post("/{id}/cancel", h.Cancel)
	r.With(middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin)).
		Post("/code/{code}/use", h.UseByCode)
	return r
}

// AdminRoutes returns the staff catalog-management routes.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRole(middleware.RoleAdmin))
	r.Post("/", h.CreateReward)
	r.Put("/{id}", h.UpdateReward)
	r.Delete("/{id}", h.DeactivateReward)
	return r
}
