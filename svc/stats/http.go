package stats

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/httpx"
)

// Handler exposes the creator stats read endpoint.
type Handler struct {
	svc *Service
}

// NewHandler creates the stats HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the stats endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{creatorID}", h.get)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	creatorID, err := uuid.Parse(chi.URLParam(r, "creatorID"))
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	st, err := h.svc.Get(r.Context(), creatorID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
