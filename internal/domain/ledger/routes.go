package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/perkhub/loyalty-api/internal/middleware"
)

// Routes returns the customer-facing ledger routes.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.GetAccount)
	r.Get("/transactions", h.ListTransactions)
	return r
}

// EventRoutes returns the internal event routes (staff tokens only).
func (h *Handler) EventRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin))
	r.Post("/order-paid", h.OrderPaid)
	return r
}

// AdminRoutes returns the staff account-management routes.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireRole(middleware.RoleStaff, middleware.RoleAdmin))
	r.Post("/accounts/{id}/adjust", h.Adjust)
	r.Get("/transactions", h.Search)
	return r
}
