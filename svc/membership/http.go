package membership

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/httpx"
	"github.com/creatorkit/creatorkit/pkg/statemachine"
)

// Handler exposes the membership operations.
type Handler struct {
	svc *Service
}

// NewHandler creates the membership HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the membership endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.start)
	r.Post("/giveaway", h.giveaway)
	r.Patch("/{membershipID}", h.update)
	r.Delete("/{membershipID}", h.cancel)
	return r
}

type startRequest struct {
	CreatorID uuid.UUID `json:"creator_id"`
	FanID     uuid.UUID `json:"fan_id"`
	TierID    uuid.UUID `json:"tier_id"`
	Period    Period    `json:"period"`
}

type subscriptionResponse struct {
	MembershipID   uuid.UUID `json:"membership_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Status         string    `json:"status"`
	ExternalID     string    `json:"external_id"`
	CycleStartAt   time.Time `json:"cycle_start_at"`
	CycleEndAt     time.Time `json:"cycle_end_at"`
}

func subscriptionBody(sub *Subscription) subscriptionResponse {
	return subscriptionResponse{
		MembershipID:   sub.MembershipID,
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		ExternalID:     sub.ExternalID,
		CycleStartAt:   sub.CycleStartAt,
		CycleEndAt:     sub.CycleEndAt,
	}
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	_, sub, err := h.svc.Start(r.Context(), req.CreatorID, req.FanID, req.TierID, req.Period)
	if err != nil {
		httpx.Error(w, mapMembershipError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, subscriptionBody(sub))
}

func (h *Handler) giveaway(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	_, sub, err := h.svc.Giveaway(r.Context(), req.CreatorID, req.FanID, req.TierID, req.Period)
	if err != nil {
		httpx.Error(w, mapMembershipError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, subscriptionBody(sub))
}

type updateRequest struct {
	TierID uuid.UUID `json:"tier_id"`
	Period Period    `json:"period"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	membershipID, err := uuid.Parse(chi.URLParam(r, "membershipID"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	sub, err := h.svc.Update(r.Context(), membershipID, req.TierID, req.Period)
	if err != nil {
		httpx.Error(w, mapMembershipError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, subscriptionBody(sub))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	membershipID, err := uuid.Parse(chi.URLParam(r, "membershipID"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	sub, err := h.svc.Cancel(r.Context(), membershipID)
	if err != nil {
		httpx.Error(w, mapMembershipError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, subscriptionBody(sub))
}

// mapMembershipError translates service errors into stable endpoint codes.
// Illegal transitions map to forbidden on purpose: neither is retriable by
// the client, and the distinction leaks state internals.
func mapMembershipError(err error) error {
	switch {
	case errors.Is(err, ErrMembershipExists):
		return httpx.NewError(http.StatusConflict, "membership_exists", "a confirmed membership already exists")
	case errors.Is(err, ErrAlreadyScheduled):
		return httpx.NewError(http.StatusConflict, "already_scheduled", "a membership change is already pending")
	case errors.Is(err, ErrAlreadyCancelled):
		return httpx.NewError(http.StatusConflict, "already_cancelled", "the membership is already cancelled")
	case errors.Is(err, ErrNoActiveSubscription):
		return httpx.NewError(http.StatusUnprocessableEntity, "no_active_subscription", "the membership has no active subscription")
	case errors.Is(err, ErrInvalidPeriod):
		return httpx.NewError(http.StatusBadRequest, "invalid_period", "unsupported billing period")
	case errors.Is(err, ErrTierNotFound), errors.Is(err, ErrMembershipNotFound):
		return httpx.ErrNotFound
	case statemachine.IsTransitionError(err):
		return httpx.NewError(http.StatusForbidden, "transition_not_allowed", "operation is not allowed in the current state")
	default:
		return err
	}
}
