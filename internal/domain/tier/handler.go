package tier

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkhub/loyalty-api/internal/pkg/response"
	"github.com/perkhub/loyalty-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns the active tier table (public).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.svc.List(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, tiers)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid tier id")
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, t)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid tier id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*UpsertTierRequest, bool) {
	var req UpsertTierRequest
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
	case errors.Is(err, ErrTierNotFound):
		response.NotFound(w, "tier not found")
	case errors.Is(err, ErrInvalidRange):
		response.BadRequest(w, "max_points must be greater than or equal to min_points")
	case errors.Is(err, ErrOverlappingRange):
		response.Conflict(w, "tier range overlaps an existing active tier")
	default:
		response.InternalError(w)
	}
}
