package payment

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creatorkit/creatorkit/pkg/httpx"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/sanitizer"
	"github.com/creatorkit/creatorkit/pkg/statemachine"
	"github.com/creatorkit/creatorkit/pkg/validator"
)

// Handler exposes the payment confirmation and donation endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates the payment HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the payment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/confirm", h.confirm)
	r.Post("/donations", h.createDonation)
	r.Post("/bank-accounts", h.addBankAccount)
	r.Post("/bank-accounts/link", h.linkBankAccount)
	return r
}

type confirmRequest struct {
	Type      string `json:"type"` // donation | subscription
	Processor string `json:"processor"`

	SubscriptionID uuid.UUID `json:"subscription_id,omitempty"`
	DonationID     uuid.UUID `json:"donation_id,omitempty"`

	Payload struct {
		OrderID        string `json:"razorpay_order_id,omitempty"`
		SubscriptionID string `json:"razorpay_subscription_id,omitempty"`
		PaymentID      string `json:"razorpay_payment_id"`
		Signature      string `json:"razorpay_signature"`
	} `json:"payload"`
}

type paymentResponse struct {
	ID      uuid.UUID `json:"id"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Amount  string    `json:"amount"`
	Message string    `json:"message"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	var (
		p   *Payment
		err error
	)
	switch req.Type {
	case "subscription":
		p, err = h.svc.AuthenticateSubscription(r.Context(), SubscriptionConfirmation{
			SubscriptionID:         req.SubscriptionID,
			ExternalSubscriptionID: req.Payload.SubscriptionID,
			ExternalPaymentID:      req.Payload.PaymentID,
			Signature:              req.Payload.Signature,
		})
	case "donation":
		p, err = h.svc.CaptureDonation(r.Context(), DonationConfirmation{
			DonationID:        req.DonationID,
			ExternalOrderID:   req.Payload.OrderID,
			ExternalPaymentID: req.Payload.PaymentID,
			Signature:         req.Payload.Signature,
		})
	default:
		httpx.Error(w, httpx.NewError(http.StatusBadRequest, "bad_request", "unknown confirmation type"))
		return
	}
	if err != nil {
		httpx.Error(w, mapConfirmError(err))
		return
	}

	httpx.JSON(w, http.StatusOK, paymentResponse{
		ID:      p.ID,
		Type:    string(p.Type),
		Status:  string(p.Status),
		Amount:  p.Amount.String(),
		Message: "Payment received. Thank you!",
	})
}

type createDonationRequest struct {
	CreatorID uuid.UUID `json:"creator_id"`
	FanID     uuid.UUID `json:"fan_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Message   string    `json:"message,omitempty"`
}

type donationResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderExternalID string    `json:"order_external_id"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) createDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	dec, err := decimal.NewFromString(req.Amount)
	if err != nil || !dec.IsPositive() {
		httpx.Error(w, httpx.NewError(http.StatusBadRequest, "bad_request", "invalid amount"))
		return
	}
	if err := validator.Apply(validator.ValidCurrencyCode("currency", req.Currency)); err != nil {
		httpx.Error(w, httpx.NewError(http.StatusBadRequest, "validation_failed", err.Error()))
		return
	}

	msg := sanitizer.Apply(req.Message,
		sanitizer.StripHTML,
		sanitizer.SingleLine,
		sanitizer.Trim,
		func(s string) string { return sanitizer.MaxLength(s, 500) },
	)

	d, err := h.svc.CreateDonation(r.Context(), req.CreatorID, req.FanID, money.New(dec, req.Currency), msg)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, donationResponse{
		ID:              d.ID,
		OrderExternalID: d.OrderExternalID,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt,
	})
}

type bankAccountRequest struct {
	CreatorID     uuid.UUID `json:"creator_id"`
	Beneficiary   string    `json:"beneficiary"`
	AccountNumber string    `json:"account_number"`
	IFSC          string    `json:"ifsc"`
}

type linkBankAccountRequest struct {
	CreatorID         uuid.UUID `json:"creator_id"`
	ExternalAccountID string    `json:"external_account_id"`
}

type bankAccountResponse struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) addBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	details := BankAccountDetails{
		Beneficiary:   sanitizer.Apply(req.Beneficiary, sanitizer.Trim, sanitizer.RemoveExtraWhitespace),
		AccountNumber: sanitizer.Apply(req.AccountNumber, sanitizer.Trim, sanitizer.KeepDigits),
		IFSC:          sanitizer.Apply(req.IFSC, sanitizer.TrimToUpper),
	}
	if err := validator.Apply(
		validator.RequiredString("beneficiary", details.Beneficiary),
		validator.ValidAccountNumber("account_number", details.AccountNumber),
		validator.ValidIFSC("ifsc", details.IFSC),
	); err != nil {
		httpx.Error(w, httpx.NewError(http.StatusBadRequest, "validation_failed", err.Error()))
		return
	}

	b, err := h.svc.AddBankAccount(r.Context(), req.CreatorID, details)
	if err != nil {
		if errors.Is(err, ErrBankAccountExists) {
			httpx.Error(w, httpx.NewError(http.StatusConflict, "bank_account_exists", "a payout destination already exists"))
			return
		}
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bankAccountResponse{
		ID: b.ID, CreatorID: b.CreatorID, Status: string(b.Status), CreatedAt: b.CreatedAt,
	})
}

func (h *Handler) linkBankAccount(w http.ResponseWriter, r *http.Request) {
	var req linkBankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	b, err := h.svc.LinkBankAccount(r.Context(), req.CreatorID, req.ExternalAccountID)
	if err != nil {
		if errors.Is(err, ErrBankAccountNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bankAccountResponse{
		ID: b.ID, CreatorID: b.CreatorID, Status: string(b.Status), CreatedAt: b.CreatedAt,
	})
}

// mapConfirmError translates ledger errors into the endpoint's stable codes.
func mapConfirmError(err error) error {
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		return httpx.NewError(http.StatusBadRequest, "signature_mismatch", "payload signature verification failed")
	case errors.Is(err, ErrPaymentAlreadyProcessed):
		return httpx.NewError(http.StatusBadRequest, "payment_already_processed", "this payment was already recorded")
	case errors.Is(err, ErrSubscriptionMismatch):
		return httpx.NewError(http.StatusBadRequest, "subscription_mismatch", "subscription does not match the payload")
	case errors.Is(err, ErrDonationMismatch):
		return httpx.NewError(http.StatusBadRequest, "donation_mismatch", "donation does not match the payload")
	case errors.Is(err, ErrInvalidSubscriptionState):
		return httpx.NewError(http.StatusBadRequest, "invalid_subscription_state", "subscription is not awaiting confirmation")
	case errors.Is(err, ErrInvalidDonationState):
		return httpx.NewError(http.StatusBadRequest, "invalid_donation_state", "donation is not pending")
	case statemachine.IsTransitionError(err):
		return httpx.NewError(http.StatusForbidden, "transition_not_allowed", "operation is not allowed in the current state")
	default:
		return err
	}
}
