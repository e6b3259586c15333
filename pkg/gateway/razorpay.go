package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Config holds Razorpay API credentials.
type Config struct {
	KeyID         string `env:"RAZORPAY_KEY_ID,required"`
	KeySecret     string `env:"RAZORPAY_KEY_SECRET,required"`
	WebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET,required"`
}

// RazorpayClient implements Client over the official Razorpay SDK.
type RazorpayClient struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
}

// NewRazorpayClient creates a Razorpay-backed gateway client.
func NewRazorpayClient(cfg Config) (*RazorpayClient, error) {
	if cfg.KeyID == "" {
		return nil, ErrMissingKeyID
	}
	if cfg.KeySecret == "" {
		return nil, ErrMissingKeySecret
	}

	return &RazorpayClient{
		client:        razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	data := map[string]interface{}{
		"amount":   req.AmountSubUnit,
		"currency": req.Currency,
		"notes":    notesMap(req.Notes),
	}
	resp, err := c.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}
	return &Order{ID: asString(resp["id"])}, nil
}

func (c *RazorpayClient) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	data := map[string]interface{}{
		"period":   req.Period,
		"interval": req.Interval,
		"item": map[string]interface{}{
			"name":     req.Name,
			"amount":   req.AmountSubUnit,
			"currency": req.Currency,
		},
		"notes": notesMap(req.Notes),
	}
	resp, err := c.client.Plan.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay plan create: %w", err)
	}
	return &Plan{ID: asString(resp["id"])}, nil
}

func (c *RazorpayClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	data := map[string]interface{}{
		"plan_id":         req.PlanID,
		"total_count":     req.TotalCount,
		"customer_notify": 0,
		"notes":           notesMap(req.Notes),
	}
	if !req.StartAt.IsZero() {
		data["start_at"] = req.StartAt.Unix()
	}
	if !req.ExpireBy.IsZero() {
		data["expire_by"] = req.ExpireBy.Unix()
	}
	resp, err := c.client.Subscription.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay subscription create: %w", err)
	}
	return &Subscription{ID: asString(resp["id"])}, nil
}

func (c *RazorpayClient) ScheduleSubscriptionChange(ctx context.Context, subscriptionID, planID string) error {
	data := map[string]interface{}{
		"plan_id":            planID,
		"schedule_change_at": "cycle_end",
	}
	if _, err := c.client.Subscription.Update(subscriptionID, data, nil); err != nil {
		return fmt.Errorf("razorpay subscription update: %w", err)
	}
	return nil
}

func (c *RazorpayClient) CancelSubscription(ctx context.Context, subscriptionID string, atCycleEnd bool) error {
	data := map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}
	if atCycleEnd {
		data["cancel_at_cycle_end"] = 1
	}
	if _, err := c.client.Subscription.Cancel(subscriptionID, data, nil); err != nil {
		return fmt.Errorf("razorpay subscription cancel: %w", err)
	}
	return nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	resp, err := c.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment fetch: %w", err)
	}
	return paymentFromResponse(resp), nil
}

func (c *RazorpayClient) CapturePayment(ctx context.Context, paymentID string, amountSubUnit int64, currencyCode string) (*Payment, error) {
	data := map[string]interface{}{
		"currency": currencyCode,
	}
	resp, err := c.client.Payment.Capture(paymentID, int(amountSubUnit), data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment capture: %w", err)
	}
	return paymentFromResponse(resp), nil
}

func (c *RazorpayClient) CreateTransfer(ctx context.Context, paymentID string, req TransferRequest) (*Transfer, error) {
	data := map[string]interface{}{
		"transfers": []map[string]interface{}{
			{
				"account":  req.AccountID,
				"amount":   req.AmountSubUnit,
				"currency": req.Currency,
			},
		},
	}
	resp, err := c.client.Payment.Transfer(paymentID, data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment transfer: %w", err)
	}
	items, _ := resp["items"].([]interface{})
	if len(items) == 0 {
		return nil, ErrNoTransferCreated
	}
	first, _ := items[0].(map[string]interface{})
	return &Transfer{ID: asString(first["id"])}, nil
}

func (c *RazorpayClient) ListSettlementTransfers(ctx context.Context, settlementID string) ([]Transfer, error) {
	resp, err := c.client.Transfer.All(map[string]interface{}{
		"recipient_settlement_id": settlementID,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay transfer list: %w", err)
	}
	items, _ := resp["items"].([]interface{})
	transfers := make([]Transfer, 0, len(items))
	for _, item := range items {
		entity, _ := item.(map[string]interface{})
		transfers = append(transfers, Transfer{ID: asString(entity["id"])})
	}
	return transfers, nil
}

func (c *RazorpayClient) VerifyOrderSignature(orderID, paymentID, signature string) error {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  signature,
	}
	if !utils.VerifyPaymentSignature(params, signature, c.keySecret) {
		return ErrSignatureMismatch
	}
	return nil
}

func (c *RazorpayClient) VerifySubscriptionSignature(subscriptionID, paymentID, signature string) error {
	params := map[string]interface{}{
		"razorpay_subscription_id": subscriptionID,
		"razorpay_payment_id":      paymentID,
		"razorpay_signature":       signature,
	}
	if !utils.VerifySubscriptionSignature(params, signature, c.keySecret) {
		return ErrSignatureMismatch
	}
	return nil
}

func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) error {
	if !utils.VerifyWebhookSignature(string(body), signature, c.webhookSecret) {
		return ErrSignatureMismatch
	}
	return nil
}

func paymentFromResponse(resp map[string]interface{}) *Payment {
	return &Payment{
		ID:            asString(resp["id"]),
		OrderID:       asString(resp["order_id"]),
		Status:        asString(resp["status"]),
		Method:        asString(resp["method"]),
		AmountSubUnit: asInt64(resp["amount"]),
		Currency:      asString(resp["currency"]),
	}
}

func notesMap(notes map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(notes))
	for k, v := range notes {
		out[k] = v
	}
	return out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asInt64 handles the float64 the JSON decoder produces for numeric fields.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
