package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/queue"
	"github.com/creatorkit/creatorkit/svc/membership"
	"github.com/creatorkit/creatorkit/svc/payment"
	"github.com/creatorkit/creatorkit/svc/stats"
)

// SubscriptionSource locates the subscription a gateway event refers to.
// The (subscription external id, plan external id) pair is unique even when
// an in-place plan change leaves two rows sharing the subscription id.
type SubscriptionSource interface {
	FindSubscriptionForUpdate(ctx context.Context, externalID, planExternalID string) (*membership.Subscription, error)
}

// SubscriptionReconciler is the slice of the membership service webhook
// handlers drive.
type SubscriptionReconciler interface {
	Activate(ctx context.Context, sub *membership.Subscription) error
	CanActivate(ctx context.Context, sub *membership.Subscription) bool
	Renew(ctx context.Context, sub *membership.Subscription, newCycleEnd time.Time) error
	CanRenew(ctx context.Context, sub *membership.Subscription) bool
	AcknowledgeCancellation(ctx context.Context, sub *membership.Subscription) error
	RefreshMembership(ctx context.Context, membershipID uuid.UUID) error
}

// Ledger is the slice of the payment service webhook handlers drive.
type Ledger interface {
	RecordSubscriptionCharge(ctx context.Context, sub *membership.Subscription, externalPaymentID string, amount money.Money, method string) (*payment.Payment, error)
	RecordDonationPaid(ctx context.Context, orderExternalID, externalPaymentID string) (*payment.Payment, error)
	MarkTransfersProcessed(ctx context.Context, transferIDs []string) error
	MarkSettlementProcessed(ctx context.Context, settlementID string) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

type handlerFunc func(ctx context.Context, ev event) error

// Service stores incoming webhook messages and reconciles them against local
// state.
type Service struct {
	store    Store
	tx       Transactor
	gw       gateway.Client
	tasks    queue.TaskEnqueuer
	subs     SubscriptionSource
	members  SubscriptionReconciler
	ledger   Ledger
	log      *slog.Logger
	handlers map[string]handlerFunc
}

// NewService creates the webhook service.
func NewService(store Store, tx Transactor, gw gateway.Client, tasks queue.TaskEnqueuer, subs SubscriptionSource, members SubscriptionReconciler, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		tx:      tx,
		gw:      gw,
		tasks:   tasks,
		subs:    subs,
		members: members,
		ledger:  ledger,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = map[string]handlerFunc{
		"subscription.charged":   s.handleSubscriptionCharged,
		"subscription.cancelled": s.handleSubscriptionCancelled,
		"subscription.pending":   s.handleSubscriptionDrift,
		"subscription.halted":    s.handleSubscriptionDrift,
		"order.paid":             s.handleOrderPaid,
		"transfer.processed":     s.handleTransferProcessed,
		"settlement.processed":   s.handleSettlementProcessed,
	}
	return s
}

// Receive verifies and stores one raw webhook delivery. Returns
// ErrDuplicateMessage when the event id was already seen, otherwise enqueues
// a processing task for the stored message.
func (s *Service) Receive(ctx context.Context, body []byte, signature, eventID string) (*Message, error) {
	if err := s.gw.VerifyWebhookSignature(body, signature); err != nil {
		return nil, err
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	m := &Message{
		ID:         uuid.New(),
		ExternalID: eventID,
		Event:      ev.Event,
		Payload:    json.RawMessage(body),
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}

	if err := s.tasks.Enqueue(ctx, ProcessMessageTask{MessageID: m.ID}); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "webhook_received",
		slog.String("event", ev.Event),
		slog.String("event_id", eventID))
	return m, nil
}

// Process reconciles one stored message inside a single transaction. Already
// processed messages and unknown event names are no-ops.
func (s *Service) Process(ctx context.Context, messageID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if m.IsProcessed {
			return nil
		}

		var ev event
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			return fmt.Errorf("decode stored webhook payload: %w", err)
		}

		if handler, ok := s.handlers[ev.Event]; ok {
			if err := handler(ctx, ev); err != nil {
				return fmt.Errorf("handle %s: %w", ev.Event, err)
			}
		} else {
			s.log.InfoContext(ctx, "webhook_event_ignored", slog.String("event", ev.Event))
		}

		return s.store.MarkProcessed(ctx, m.ID)
	})
}

func (s *Service) handleSubscriptionCharged(ctx context.Context, ev event) error {
	subEnt := ev.Payload.Subscription.Entity
	payEnt := ev.Payload.Payment.Entity

	sub, err := s.subs.FindSubscriptionForUpdate(ctx, subEnt.ID, subEnt.PlanID)
	if err != nil {
		return err
	}

	switch {
	case s.members.CanActivate(ctx, sub):
		if err := s.members.Activate(ctx, sub); err != nil {
			return err
		}
	case s.members.CanRenew(ctx, sub):
		// The gateway retries charge events; a second event for the same
		// cycle carries the same cycle-end date and must not renew twice.
		newEnd := time.Unix(subEnt.CurrentEnd, 0).UTC()
		if !sameDate(newEnd, sub.CycleEndAt.UTC()) {
			if err := s.members.Renew(ctx, sub, newEnd); err != nil {
				return err
			}
		}
	}

	amount, err := money.FromSubUnit(payEnt.AmountSubUnit, payEnt.Currency)
	if err != nil {
		return err
	}
	if _, err := s.ledger.RecordSubscriptionCharge(ctx, sub, payEnt.ID, amount, payEnt.Method); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, stats.RefreshCreatorStatsTask{CreatorID: sub.CreatorID})
}

func (s *Service) handleSubscriptionCancelled(ctx context.Context, ev event) error {
	sub, err := s.subs.FindSubscriptionForUpdate(ctx, ev.Payload.Subscription.Entity.ID, ev.Payload.Subscription.Entity.PlanID)
	if err != nil {
		return err
	}
	if err := s.members.AcknowledgeCancellation(ctx, sub); err != nil {
		return err
	}
	if err := s.members.RefreshMembership(ctx, sub.MembershipID); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, stats.RefreshCreatorStatsTask{CreatorID: sub.CreatorID})
}

// handleSubscriptionDrift covers pending and halted events: the webhook is a
// hint, not a command — the drift-correction guards decide the actual state.
func (s *Service) handleSubscriptionDrift(ctx context.Context, ev event) error {
	sub, err := s.subs.FindSubscriptionForUpdate(ctx, ev.Payload.Subscription.Entity.ID, ev.Payload.Subscription.Entity.PlanID)
	if err != nil {
		return err
	}
	if err := s.members.RefreshMembership(ctx, sub.MembershipID); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, stats.RefreshCreatorStatsTask{CreatorID: sub.CreatorID})
}

func (s *Service) handleOrderPaid(ctx context.Context, ev event) error {
	_, err := s.ledger.RecordDonationPaid(ctx, ev.Payload.Order.Entity.ID, ev.Payload.Payment.Entity.ID)
	return err
}

func (s *Service) handleTransferProcessed(ctx context.Context, ev event) error {
	return s.ledger.MarkTransfersProcessed(ctx, []string{ev.Payload.Transfer.Entity.ID})
}

func (s *Service) handleSettlementProcessed(ctx context.Context, ev event) error {
	return s.ledger.MarkSettlementProcessed(ctx, ev.Payload.Settlement.Entity.ID)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
