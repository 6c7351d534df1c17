package reward

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkhub/loyalty-api/internal/domain/ledger"
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

// ListRewards returns the active catalog (public).
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.ListRewards(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, rewards)
}

// Redeem spends the authenticated customer's points on a reward.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())
	if customerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	rewardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid reward id")
		return
	}

	red, err := h.svc.Redeem(r.Context(), customerID, rewardID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, red)
}

// ListRedemptions returns the authenticated customer's redemption
// history, newest first.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetUserID(r.Context())
	if customerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	status := r.URL.Query().Get("status")
	if err := validator.ValidateVar(status, "redemption_status"); err != nil {
		response.BadRequest(w, "invalid status filter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	redemptions, err := h.svc.ListRedemptions(r.Context(), customerID, Status(status), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, redemptions)
}

// GetRedemption returns one redemption. Customers only see their own.
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid redemption id")
		return
	}

	red, err := h.svc.GetRedemption(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	role := middleware.GetRole(r.Context())
	if role == middleware.RoleCustomer && red.CustomerID != middleware.GetUserID(r.Context()) {
		response.NotFound(w, "redemption not found")
		return
	}
	response.OK(w, red)
}

// Cancel voids the authenticated customer's pending redemption and
// refunds the points.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid redemption id")
		return
	}

	// Staff cancel on behalf of any customer.
	customerID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())
	if role == middleware.RoleStaff || role == middleware.RoleAdmin {
		customerID = uuid.Nil
	}

	red, err := h.svc.Cancel(r.Context(), id, customerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, red)
}

// UseByCode settles a redemption at the counter by its printed code.
func (h *Handler) UseByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		response.BadRequest(w, "missing redemption code")
		return
	}

	red, err := h.svc.MarkUsedByCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, red)
}

func (h *Handler) CreateReward(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	rw, err := h.svc.CreateReward(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, rw)
}

func (h *Handler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid reward id")
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	rw, err := h.svc.UpdateReward(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, rw)
}

func (h *Handler) DeactivateReward(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid reward id")
		return
	}

	if err := h.svc.DeactivateReward(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*UpsertRewardRequest, bool) {
	var req UpsertRewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return nil, false
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return nil, false
	}
	return &req, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRewardNotFound):
		response.NotFound(w, "reward not found")
	case errors.Is(err, ErrRedemptionNotFound):
		response.NotFound(w, "redemption not found")
	case errors.Is(err, ledger.ErrAccountNotFound):
		response.NotFound(w, "loyalty account not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		response.UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "not enough points for this reward")
	case errors.Is(err, ErrInsufficientStock):
		response.Conflict(w, "reward is out of stock")
	case errors.Is(err, ErrInvalidStateTransition):
		response.Conflict(w, "redemption is not pending")
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		response.Conflict(w, "concurrent update, retry the request")
	case errors.Is(err, ledger.ErrStorage):
		response.ServiceUnavailable(w, "storage temporarily unavailable")
	default:
		response.InternalError(w)
	}
}
