package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/queue"
	"github.com/creatorkit/creatorkit/svc/membership"
)

// Config holds payment service settings.
type Config struct {
	// FeePercent is the platform-wide fee retained from each payment, in
	// percent. A creator's bank account may override it.
	FeePercent float64 `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFeePercent sets the platform-wide fee percentage.
func WithFeePercent(percent float64) Option {
	return func(s *Service) { s.feePercent = decimal.NewFromFloat(percent) }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// Service records payments and payouts from gateway confirmations.
type Service struct {
	store Store
	tx    Transactor
	gw    gateway.Client
	tasks queue.TaskEnqueuer
	subs  Subscriptions
	life  SubscriptionLifecycle
	log   *slog.Logger

	now        func() time.Time
	feePercent decimal.Decimal
}

// NewService creates the payment service. subs and life are the membership
// store and service; the ledger drives subscription transitions through them
// when a confirmation lands.
func NewService(store Store, tx Transactor, gw gateway.Client, tasks queue.TaskEnqueuer, subs Subscriptions, life SubscriptionLifecycle, opts ...Option) *Service {
	s := &Service{
		store:      store,
		tx:         tx,
		gw:         gw,
		tasks:      tasks,
		subs:       subs,
		life:       life,
		log:        slog.Default(),
		now:        time.Now,
		feePercent: decimal.NewFromInt(10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubscriptionConfirmation is the client-posted checkout result for a
// subscription: the gateway ids plus the checkout signature.
type SubscriptionConfirmation struct {
	SubscriptionID         uuid.UUID
	ExternalSubscriptionID string
	ExternalPaymentID      string
	Signature              string
}

// AuthenticateSubscription ingests a successful subscription checkout. The
// whole flow runs under the subscription's row lock so it cannot race the
// webhook path for the same subscription. The recorded amount comes from the
// gateway's own payment record, never from the client payload.
func (s *Service) AuthenticateSubscription(ctx context.Context, conf SubscriptionConfirmation) (*Payment, error) {
	if err := s.gw.VerifySubscriptionSignature(conf.ExternalSubscriptionID, conf.ExternalPaymentID, conf.Signature); err != nil {
		return nil, ErrSignatureMismatch
	}

	var p *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindPaymentByExternalID(ctx, conf.ExternalPaymentID); err == nil {
			return ErrPaymentAlreadyProcessed
		} else if !errors.Is(err, ErrPaymentNotFound) {
			return err
		}

		// The gateway subscription id is the source of truth: lock the created
		// row carrying it and check the client-posted local id against it.
		sub, err := s.subs.FindCreatedSubscriptionForUpdate(ctx, conf.ExternalSubscriptionID)
		switch {
		case err == nil:
			if sub.ID != conf.SubscriptionID {
				return ErrSubscriptionMismatch
			}
		case errors.Is(err, membership.ErrSubscriptionNotFound):
			// No created row carries this gateway id. Lock the referenced
			// subscription to tell a mismatch from a replayed confirmation.
			sub, err = s.subs.GetSubscriptionForUpdate(ctx, conf.SubscriptionID)
			if err != nil {
				return err
			}
			if sub.ExternalID != conf.ExternalSubscriptionID {
				return ErrSubscriptionMismatch
			}
			return ErrInvalidSubscriptionState
		default:
			return err
		}

		if err := s.life.Authenticate(ctx, sub); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSubscriptionState, err)
		}

		gwPayment, err := s.gw.FetchPayment(ctx, conf.ExternalPaymentID)
		if err != nil {
			return fmt.Errorf("fetch gateway payment: %w", err)
		}
		amount, err := money.FromSubUnit(gwPayment.AmountSubUnit, gwPayment.Currency)
		if err != nil {
			return err
		}

		now := s.now()
		p = &Payment{
			ID:             uuid.New(),
			Type:           TypeSubscription,
			Status:         PaymentCaptured,
			Amount:         amount,
			Method:         gwPayment.Method,
			ExternalID:     gwPayment.ID,
			SubscriptionID: &sub.ID,
			CreatorID:      sub.CreatorID,
			FanID:          sub.FanID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.CreatePayment(ctx, p); err != nil {
			return err
		}

		sub.PaymentMethod = gwPayment.Method
		if err := s.subs.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		if s.life.CanActivate(ctx, sub) {
			return s.life.Activate(ctx, sub)
		}
		return s.life.ScheduleToActivate(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription_payment_recorded",
		slog.String("subscription_id", conf.SubscriptionID.String()),
		slog.String("payment_external_id", p.ExternalID))
	return p, nil
}

// CreateDonation opens a donation intent: a gateway order the fan pays
// through checkout, confirmed later via CaptureDonation or the order.paid
// webhook.
func (s *Service) CreateDonation(ctx context.Context, creatorID, fanID uuid.UUID, amount money.Money, message string) (*Donation, error) {
	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountSubUnit: amount.SubUnit(),
		Currency:      amount.Currency,
		Notes:         map[string]string{"creator_id": creatorID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	now := s.now()
	d := &Donation{
		ID:              uuid.New(),
		CreatorID:       creatorID,
		FanID:           fanID,
		Amount:          amount,
		Message:         message,
		OrderExternalID: order.ID,
		Status:          DonationPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateDonation(ctx, d); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "donation_created",
		slog.String("donation_id", d.ID.String()),
		slog.String("order_external_id", order.ID))
	return d, nil
}

// DonationConfirmation is the client-posted checkout result for a donation.
type DonationConfirmation struct {
	DonationID        uuid.UUID
	ExternalOrderID   string
	ExternalPaymentID string
	Signature         string
}

// CaptureDonation ingests a successful donation checkout: captures the
// payment at the gateway, marks the donation successful and records the
// Payment idempotently.
func (s *Service) CaptureDonation(ctx context.Context, conf DonationConfirmation) (*Payment, error) {
	if err := s.gw.VerifyOrderSignature(conf.ExternalOrderID, conf.ExternalPaymentID, conf.Signature); err != nil {
		return nil, ErrSignatureMismatch
	}

	var p *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindPaymentByExternalID(ctx, conf.ExternalPaymentID); err == nil {
			return ErrPaymentAlreadyProcessed
		} else if !errors.Is(err, ErrPaymentNotFound) {
			return err
		}

		d, err := s.store.GetDonationForUpdate(ctx, conf.DonationID)
		if err != nil {
			return err
		}
		if d.OrderExternalID != conf.ExternalOrderID {
			return ErrDonationMismatch
		}
		if d.Status != DonationPending {
			return ErrInvalidDonationState
		}

		gwPayment, err := s.gw.CapturePayment(ctx, conf.ExternalPaymentID, d.Amount.SubUnit(), d.Amount.Currency)
		if err != nil {
			return fmt.Errorf("capture gateway payment: %w", err)
		}

		now := s.now()
		d.Status = DonationSuccessful
		d.UpdatedAt = now
		if err := s.store.UpdateDonation(ctx, d); err != nil {
			return err
		}

		p = &Payment{
			ID:         uuid.New(),
			Type:       TypeDonation,
			Status:     PaymentCaptured,
			Amount:     d.Amount,
			Method:     gwPayment.Method,
			ExternalID: gwPayment.ID,
			DonationID: &d.ID,
			CreatorID:  d.CreatorID,
			FanID:      d.FanID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreatePayment(ctx, p); err != nil {
			return err
		}
		return s.tasks.Enqueue(ctx, DonationReceivedNotification{DonationID: d.ID})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "donation_payment_recorded",
		slog.String("donation_id", conf.DonationID.String()),
		slog.String("payment_external_id", p.ExternalID))
	return p, nil
}

// RecordSubscriptionCharge upserts the Payment for a subscription.charged
// webhook and schedules the payout. Replays for the same gateway payment id
// return the existing row.
func (s *Service) RecordSubscriptionCharge(ctx context.Context, sub *membership.Subscription, externalPaymentID string, amount money.Money, method string) (*Payment, error) {
	p, err := s.store.FindPaymentByExternalID(ctx, externalPaymentID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	now := s.now()
	p = &Payment{
		ID:             uuid.New(),
		Type:           TypeSubscription,
		Status:         PaymentCaptured,
		Amount:         amount,
		Method:         method,
		ExternalID:     externalPaymentID,
		SubscriptionID: &sub.ID,
		CreatorID:      sub.CreatorID,
		FanID:          sub.FanID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	if _, err := s.PayoutForPayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordDonationPaid handles the order.paid webhook. An unknown order id is
// silently ignored — the order may belong to a subscription checkout instead
// of a donation.
func (s *Service) RecordDonationPaid(ctx context.Context, orderExternalID, externalPaymentID string) (*Payment, error) {
	d, err := s.store.FindDonationByOrderIDForUpdate(ctx, orderExternalID)
	if errors.Is(err, ErrDonationNotFound) {
		s.log.InfoContext(ctx, "order_paid_without_donation", slog.String("order_external_id", orderExternalID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if d.Status == DonationPending {
		d.Status = DonationSuccessful
		d.UpdatedAt = now
		if err := s.store.UpdateDonation(ctx, d); err != nil {
			return nil, err
		}
	}

	p, err := s.store.FindPaymentByExternalID(ctx, externalPaymentID)
	if errors.Is(err, ErrPaymentNotFound) {
		gwPayment, err := s.gw.FetchPayment(ctx, externalPaymentID)
		if err != nil {
			return nil, fmt.Errorf("fetch gateway payment: %w", err)
		}
		p = &Payment{
			ID:         uuid.New(),
			Type:       TypeDonation,
			Status:     PaymentCaptured,
			Amount:     d.Amount,
			Method:     gwPayment.Method,
			ExternalID: externalPaymentID,
			DonationID: &d.ID,
			CreatorID:  d.CreatorID,
			FanID:      d.FanID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreatePayment(ctx, p); err != nil {
			return nil, err
		}
		if err := s.tasks.Enqueue(ctx, DonationReceivedNotification{DonationID: d.ID}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if _, err := s.PayoutForPayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
