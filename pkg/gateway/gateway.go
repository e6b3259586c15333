package gateway

import (
	"context"
	"time"
)

// Client is the payment processor contract consumed by the billing core.
// Implementations must not retry internally; idempotency is the caller's
// responsibility via gateway-assigned ids.
type Client interface {
	// CreateOrder registers a one-shot payment intent (donations).
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// CreatePlan mirrors a local billing plan to the processor.
	CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error)

	// CreateSubscription registers a recurring billing agreement.
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)

	// ScheduleSubscriptionChange switches the subscription to a new plan at
	// the end of the current cycle.
	ScheduleSubscriptionChange(ctx context.Context, subscriptionID, planID string) error

	// CancelSubscription cancels a subscription, optionally at cycle end.
	CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error

	// FetchPayment retrieves the authoritative payment record. Callers use it
	// instead of trusting client-supplied amounts.
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)

	// CapturePayment captures an authorized payment for the given amount.
	CapturePayment(ctx context.Context, paymentID string, amountSubUnit int64, currencyCode string) (*Payment, error)

	// CreateTransfer routes a captured payment (minus fees) to a linked account.
	CreateTransfer(ctx context.Context, paymentID string, req TransferRequest) (*Transfer, error)

	// ListSettlementTransfers returns the transfers included in a settlement.
	ListSettlementTransfers(ctx context.Context, settlementID string) ([]Transfer, error)

	// VerifyOrderSignature checks the checkout signature over (orderID, paymentID).
	// Returns ErrSignatureMismatch on failure; never silently ignores it.
	VerifyOrderSignature(orderID, paymentID, signature string) error

	// VerifySubscriptionSignature checks the checkout signature over
	// (paymentID, subscriptionID).
	VerifySubscriptionSignature(subscriptionID, paymentID, signature string) error

	// VerifyWebhookSignature checks the HMAC signature over a raw webhook body.
	VerifyWebhookSignature(body []byte, signature string) error
}

// OrderRequest describes a one-shot payment intent.
type OrderRequest struct {
	AmountSubUnit int64
	Currency      string
	Notes         map[string]string
}

// Order is the processor-side order record.
type Order struct {
	ID string
}

// PlanRequest mirrors a local plan to the processor.
type PlanRequest struct {
	Name          string
	Period        string // weekly, monthly, yearly
	Interval      int
	AmountSubUnit int64
	Currency      string
	Notes         map[string]string
}

// Plan is the processor-side plan record.
type Plan struct {
	ID string
}

// SubscriptionRequest registers a recurring billing agreement.
type SubscriptionRequest struct {
	PlanID     string
	TotalCount int       // number of billing cycles
	StartAt    time.Time // zero means start immediately
	ExpireBy   time.Time // authorization deadline
	Notes      map[string]string
}

// Subscription is the processor-side subscription record.
type Subscription struct {
	ID string
}

// Payment is the processor's view of a payment.
type Payment struct {
	ID            string
	OrderID       string
	Status        string // created, authorized, captured, refunded, failed
	Method        string // card, netbanking, upi, wallet, emandate
	AmountSubUnit int64
	Currency      string
}

// TransferRequest routes money to a linked account.
type TransferRequest struct {
	AccountID     string
	AmountSubUnit int64
	Currency      string
}

// Transfer is the processor-side transfer record.
type Transfer struct {
	ID string
}
