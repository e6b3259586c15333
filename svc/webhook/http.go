package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creatorkit/creatorkit/pkg/clientip"
	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/httpx"
)

const (
	headerSignature = "X-Razorpay-Signature"
	headerEventID   = "X-Razorpay-Event-Id"

	ackOk       = "Ok."
	ackReceived = "Already Received."
)

// Handler is the webhook HTTP entry.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler creates the webhook HTTP handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Routes mounts the gateway webhook endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/razorpay", h.receive)
	return r
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.Error(w, httpx.ErrBadRequest)
		return
	}

	_, err = h.svc.Receive(r.Context(),
		body,
		r.Header.Get(headerSignature),
		r.Header.Get(headerEventID),
	)
	switch {
	case err == nil:
		httpx.Text(w, http.StatusOK, ackOk)
	case errors.Is(err, ErrDuplicateMessage):
		httpx.Text(w, http.StatusOK, ackReceived)
	case errors.Is(err, gateway.ErrSignatureMismatch):
		h.log.WarnContext(r.Context(), "webhook_signature_rejected",
			slog.String("remote_ip", clientip.GetIP(r)))
		httpx.Text(w, http.StatusForbidden, "Forbidden")
	default:
		h.log.ErrorContext(r.Context(), "webhook_receive_failed", slog.Any("error", err))
		httpx.Error(w, err)
	}
}
