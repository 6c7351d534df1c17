package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkhub/loyalty-api/internal/domain/order"
	"github.com/perkhub/loyalty-api/internal/middleware"
	"github.com/perkhub/loyalty-api/internal/pkg/response"
	"github.com/perkhub/loyalty-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// OrderPaid handles the "order paid" event from the order service.
func (h *Handler) OrderPaid(w http.ResponseWriter, r *http.Request) {
	var req OrderPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	awarded, err := h.svc.Earn(r.Context(), req.CustomerID, req.OrderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	acct, err := h.svc.GetAccountByCustomer(r.Context(), req.CustomerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, EarnResponse{PointsAwarded: awarded, Balance: acct.PointsBalance})
}

// GetAccount returns the authenticated customer's loyalty account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())
	if customerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	acct, err := h.svc.GetAccountByCustomer(r.Context(), customerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, NewAccountResponse(acct))
}

// ListTransactions returns the authenticated customer's statement.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())
	if customerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.svc.ListTransactions(r.Context(), customerID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, transactions)
}

// Adjust applies a staff-initiated balance correction to an account.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	actorID := middleware.GetUserID(r.Context())
	acct, err := h.svc.Adjust(r.Context(), accountID, req.Points, actorID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, NewAccountResponse(acct))
}

// Search returns filtered transactions across accounts (staff use).
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SearchFilters{}

	if v := q.Get("account_id"); v != "" {
		filters.AccountID = &v
	}
	if v := q.Get("tx_type"); v != "" {
		if err := validator.ValidateVar(v, "tx_type"); err != nil {
			response.BadRequest(w, "invalid tx_type filter")
			return
		}
		filters.TxType = &v
	}
	if v := q.Get("source_type"); v != "" {
		filters.SourceType = &v
	}
	if v := q.Get("source_id"); v != "" {
		filters.SourceID = &v
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateFrom = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateTo = &t
		}
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))

	transactions, err := h.svc.SearchTransactions(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, transactions)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, "loyalty account not found")
	case errors.Is(err, order.ErrNotFound):
		response.NotFound(w, "order not found")
	case errors.Is(err, ErrOrderMismatch):
		response.BadRequest(w, "order does not belong to customer")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "points delta must be non-zero")
	case errors.Is(err, ErrInsufficientBalance):
		response.UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "adjustment would make the balance negative")
	case errors.Is(err, ErrConcurrencyConflict):
		response.Conflict(w, "account is busy, retry the request")
	case errors.Is(err, ErrStorage):
		response.ServiceUnavailable(w, "storage unavailable, retry later")
	default:
		response.InternalError(w)
	}
}
