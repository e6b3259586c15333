package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Fake is an in-memory gateway for tests. Object ids are deterministic
// (plan_1, sub_2, ...) and signatures use the same HMAC-SHA256 scheme as the
// real processor so rejection paths can be exercised.
type Fake struct {
	mu sync.Mutex

	Secret        string
	WebhookSecret string

	// Payments holds payment records returned by FetchPayment/CapturePayment,
	// keyed by payment id. Tests seed this to simulate completed checkouts.
	Payments map[string]*Payment

	// SettlementTransfers maps settlement id to the transfer ids it covers.
	SettlementTransfers map[string][]string

	Orders        []OrderRequest
	Plans         []PlanRequest
	Subscriptions []SubscriptionRequest
	Transfers     []TransferRequest

	// ScheduledChanges records ScheduleSubscriptionChange calls as (subID, planID).
	ScheduledChanges [][2]string
	// Cancellations records CancelSubscription calls.
	Cancellations []string

	// Err, when set, is returned by every mutating call to simulate outages.
	Err error

	seq int
}

// NewFake returns a Fake with default secrets.
func NewFake() *Fake {
	return &Fake{
		Secret:              "test-key-secret",
		WebhookSecret:       "test-webhook-secret",
		Payments:            make(map[string]*Payment),
		SettlementTransfers: make(map[string][]string),
	}
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%06d", prefix, f.seq)
}

func (f *Fake) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Orders = append(f.Orders, req)
	return &Order{ID: f.nextID("order")}, nil
}

func (f *Fake) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Plans = append(f.Plans, req)
	return &Plan{ID: f.nextID("plan")}, nil
}

func (f *Fake) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Subscriptions = append(f.Subscriptions, req)
	return &Subscription{ID: f.nextID("sub")}, nil
}

func (f *Fake) ScheduleSubscriptionChange(ctx context.Context, subscriptionID, planID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.ScheduledChanges = append(f.ScheduledChanges, [2]string{subscriptionID, planID})
	return nil
}

func (f *Fake) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Cancellations = append(f.Cancellations, subscriptionID)
	return nil
}

func (f *Fake) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) CapturePayment(ctx context.Context, paymentID string, amountSubUnit int64, currencyCode string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p, ok := f.Payments[paymentID]
	if !ok {
		p = &Payment{ID: paymentID, Method: "card"}
		f.Payments[paymentID] = p
	}
	p.Status = "captured"
	p.AmountSubUnit = amountSubUnit
	p.Currency = currencyCode
	cp := *p
	return &cp, nil
}

func (f *Fake) CreateTransfer(ctx context.Context, paymentID string, req TransferRequest) (*Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Transfers = append(f.Transfers, req)
	return &Transfer{ID: f.nextID("trf")}, nil
}

func (f *Fake) ListSettlementTransfers(ctx context.Context, settlementID string) ([]Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.SettlementTransfers[settlementID]
	transfers := make([]Transfer, 0, len(ids))
	for _, id := range ids {
		transfers = append(transfers, Transfer{ID: id})
	}
	return transfers, nil
}

// SignOrder produces a valid order checkout signature, mirroring the
// processor's payload format.
func (f *Fake) SignOrder(orderID, paymentID string) string {
	return hmacHex(f.Secret, orderID+"|"+paymentID)
}

// SignSubscription produces a valid subscription checkout signature.
func (f *Fake) SignSubscription(subscriptionID, paymentID string) string {
	return hmacHex(f.Secret, paymentID+"|"+subscriptionID)
}

// SignWebhook produces a valid webhook body signature.
func (f *Fake) SignWebhook(body []byte) string {
	return hmacHex(f.WebhookSecret, string(body))
}

func (f *Fake) VerifyOrderSignature(orderID, paymentID, signature string) error {
	if !hmac.Equal([]byte(signature), []byte(f.SignOrder(orderID, paymentID))) {
		return ErrSignatureMismatch
	}
	return nil
}

func (f *Fake) VerifySubscriptionSignature(subscriptionID, paymentID, signature string) error {
	if !hmac.Equal([]byte(signature), []byte(f.SignSubscription(subscriptionID, paymentID))) {
		return ErrSignatureMismatch
	}
	return nil
}

func (f *Fake) VerifyWebhookSignature(body []byte, signature string) error {
	if !hmac.Equal([]byte(signature), []byte(f.SignWebhook(body))) {
		return ErrSignatureMismatch
	}
	return nil
}

func hmacHex(secret, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

var _ Client = (*Fake)(nil)
var _ Client = (*RazorpayClient)(nil)
