package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/queue"
	"github.com/creatorkit/creatorkit/pkg/statemachine"
)

// GiveawayLedger records the synthetic captured payment and processed payout
// of a creator-granted membership. Implemented by the payment service; kept
// as a local interface so the two services depend on each other through
// narrow seams instead of package imports.
type GiveawayLedger interface {
	RecordGiveaway(ctx context.Context, sub *Subscription, amount money.Money) error
}

// Config holds membership service settings.
type Config struct {
	// GraceDays is how many days past cycle end a non-renewing subscription
	// keeps access before halting.
	GraceDays int `env:"MEMBERSHIP_GRACE_DAYS" envDefault:"3"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source. Tests advance it to cross cycle
// boundaries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGraceDays overrides the halt grace period.
func WithGraceDays(days int) Option {
	return func(s *Service) { s.graceDays = days }
}

// WithGiveawayLedger wires the payment-side ledger for giveaways.
func WithGiveawayLedger(ledger GiveawayLedger) Option {
	return func(s *Service) { s.ledger = ledger }
}

// SetGiveawayLedger late-binds the ledger. The payment service is built on
// top of this one, so the composition root wires it after construction.
func (s *Service) SetGiveawayLedger(ledger GiveawayLedger) { s.ledger = ledger }

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// Service owns the subscription lifecycle and the membership aggregate.
type Service struct {
	store  Store
	tx     Transactor
	gw     gateway.Client
	tasks  queue.TaskEnqueuer
	ledger GiveawayLedger
	fsm    *statemachine.Machine
	log    *slog.Logger

	now       func() time.Time
	graceDays int
}

// NewService creates the membership service.
func NewService(store Store, tx Transactor, gw gateway.Client, tasks queue.TaskEnqueuer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        tx,
		gw:        gw,
		tasks:     tasks,
		log:       slog.Default(),
		now:       time.Now,
		graceDays: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fsm = s.newSubscriptionFSM()
	return s
}

// Start begins a membership: memoized plan, a created-state subscription
// registered with the gateway, and the subscription parked in the scheduled
// slot until payment confirmation arrives.
func (s *Service) Start(ctx context.Context, creatorID, fanID, tierID uuid.UUID, period Period) (*Membership, *Subscription, error) {
	if !period.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	var (
		m   *Membership
		sub *Subscription
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tier, err := s.store.GetTier(ctx, tierID)
		if err != nil {
			return err
		}

		m, err = s.findOrCreateMembership(ctx, creatorID, fanID)
		if err != nil {
			return err
		}
		if m.Confirmed() {
			return ErrMembershipExists
		}

		plan, err := s.getOrCreatePlan(ctx, tier, tier.Amount, period, 1)
		if err != nil {
			return err
		}

		now := s.now()
		gwSub, err := s.gw.CreateSubscription(ctx, gateway.SubscriptionRequest{
			PlanID:     plan.ExternalID,
			TotalCount: period.termCount(),
			ExpireBy:   now.Add(15 * time.Minute),
			Notes:      map[string]string{"membership_id": m.ID.String()},
		})
		if err != nil {
			return fmt.Errorf("register gateway subscription: %w", err)
		}

		sub = &Subscription{
			ID:           uuid.New(),
			MembershipID: m.ID,
			PlanID:       plan.ID,
			CreatorID:    creatorID,
			FanID:        fanID,
			Status:       StatusCreated,
			ExternalID:   gwSub.ID,
			CycleStartAt: now,
			CycleEndAt:   period.NextCycleEnd(now, plan.Interval),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		m.ScheduledSubscriptionID = &sub.ID
		return s.store.UpdateMembership(ctx, m)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.InfoContext(ctx, "membership_start",
		slog.String("membership_id", m.ID.String()),
		slog.String("subscription_id", sub.ID.String()))
	return m, sub, nil
}

// Update schedules a plan change for an existing membership. The payment
// method decides the shape: UPI subscriptions cannot be patched at the
// gateway, so that branch creates a fresh created-state row with its own
// external id; every other method patches the gateway subscription in place
// and the incoming row shares the outgoing row's external id.
func (s *Service) Update(ctx context.Context, membershipID, tierID uuid.UUID, period Period) (*Subscription, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	var next *Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMembershipForUpdate(ctx, membershipID)
		if err != nil {
			return err
		}
		if m.ActiveSubscriptionID == nil {
			return ErrNoActiveSubscription
		}
		if m.ScheduledSubscriptionID != nil {
			scheduled, err := s.store.GetSubscription(ctx, *m.ScheduledSubscriptionID)
			if err != nil {
				return err
			}
			// A created-state leftover is an abandoned checkout and may be
			// replaced; anything further along is a real pending change.
			if scheduled.Status != StatusCreated {
				return ErrAlreadyScheduled
			}
		}

		active, err := s.store.GetSubscriptionForUpdate(ctx, *m.ActiveSubscriptionID)
		if err != nil {
			return err
		}
		tier, err := s.store.GetTier(ctx, tierID)
		if err != nil {
			return err
		}
		plan, err := s.getOrCreatePlan(ctx, tier, tier.Amount, period, 1)
		if err != nil {
			return err
		}

		now := s.now()
		nextStart := active.CycleEndAt
		if nextStart.Before(now) {
			nextStart = now
		}

		next = &Subscription{
			ID:            uuid.New(),
			MembershipID:  m.ID,
			PlanID:        plan.ID,
			CreatorID:     m.CreatorID,
			FanID:         m.FanID,
			PaymentMethod: active.PaymentMethod,
			CycleStartAt:  nextStart,
			CycleEndAt:    period.NextCycleEnd(nextStart, plan.Interval),
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if active.PaymentMethod == PaymentMethodUPI {
			// One-shot methods need fresh authorization against a brand-new
			// gateway subscription; the old row keeps running untouched until
			// the new one authenticates.
			gwSub, err := s.gw.CreateSubscription(ctx, gateway.SubscriptionRequest{
				PlanID:     plan.ExternalID,
				TotalCount: period.termCount(),
				Notes:      map[string]string{"membership_id": m.ID.String()},
			})
			if err != nil {
				return fmt.Errorf("register gateway subscription: %w", err)
			}
			next.Status = StatusCreated
			next.ExternalID = gwSub.ID
			next.PaymentMethod = ""
		} else {
			if err := s.gw.ScheduleSubscriptionChange(ctx, active.ExternalID, plan.ExternalID); err != nil {
				return fmt.Errorf("schedule gateway plan change: %w", err)
			}
			// The gateway-side change is already scheduled, so the local
			// cancel must not issue a second cancel call.
			if err := s.scheduleToCancel(ctx, active, true); err != nil {
				return err
			}
			next.Status = StatusScheduledToActivate
			next.ExternalID = active.ExternalID
		}

		if err := s.store.CreateSubscription(ctx, next); err != nil {
			return err
		}

		m.ScheduledSubscriptionID = &next.ID
		if err := s.store.UpdateMembership(ctx, m); err != nil {
			return err
		}

		if next.Status == StatusScheduledToActivate {
			return s.tasks.Enqueue(ctx, MembershipChangingNotification{MembershipID: m.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "membership_update",
		slog.String("membership_id", membershipID.String()),
		slog.String("next_subscription_id", next.ID.String()),
		slog.String("next_status", string(next.Status)))
	return next, nil
}

// Cancel schedules the membership's active subscription to cancel at cycle
// end. Cancelling twice is an error, not a no-op.
func (s *Service) Cancel(ctx context.Context, membershipID uuid.UUID) (*Subscription, error) {
	var active *Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMembershipForUpdate(ctx, membershipID)
		if err != nil {
			return err
		}
		if m.ActiveSubscriptionID == nil {
			return ErrNoActiveSubscription
		}
		active, err = s.store.GetSubscriptionForUpdate(ctx, *m.ActiveSubscriptionID)
		if err != nil {
			return err
		}
		if active.Status == StatusScheduledToCancel || active.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		return s.scheduleToCancel(ctx, active, false)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "membership_cancel",
		slog.String("membership_id", membershipID.String()),
		slog.String("subscription_id", active.ID.String()))
	return active, nil
}

// Giveaway grants a membership without payment: zero-amount plan, sentinel
// external id, synthetic captured payment and processed payout via the
// ledger, immediate authenticate+activate, and a forced follow so the fan
// sees the creator's feed.
func (s *Service) Giveaway(ctx context.Context, creatorID, fanID, tierID uuid.UUID, period Period) (*Membership, *Subscription, error) {
	if !period.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	var (
		m   *Membership
		sub *Subscription
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tier, err := s.store.GetTier(ctx, tierID)
		if err != nil {
			return err
		}
		m, err = s.findOrCreateMembership(ctx, creatorID, fanID)
		if err != nil {
			return err
		}

		amount := money.Zero(tier.Amount.Currency)
		plan, err := s.getOrCreatePlan(ctx, tier, amount, period, 1)
		if err != nil {
			return err
		}

		now := s.now()
		sub = &Subscription{
			ID:            uuid.New(),
			MembershipID:  m.ID,
			PlanID:        plan.ID,
			CreatorID:     creatorID,
			FanID:         fanID,
			Status:        StatusCreated,
			ExternalID:    giveawayExternalPrefix + uuid.NewString(),
			PaymentMethod: PaymentMethodGiveaway,
			CycleStartAt:  now.Add(-time.Second),
			CycleEndAt:    period.NextCycleEnd(now, plan.Interval),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		m.ScheduledSubscriptionID = &sub.ID
		if err := s.store.UpdateMembership(ctx, m); err != nil {
			return err
		}

		if s.ledger != nil {
			if err := s.ledger.RecordGiveaway(ctx, sub, amount); err != nil {
				return fmt.Errorf("record giveaway ledger entries: %w", err)
			}
		}

		if err := s.Authenticate(ctx, sub); err != nil {
			return err
		}
		if err := s.Activate(ctx, sub); err != nil {
			return err
		}
		return s.store.UpsertFollow(ctx, creatorID, fanID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.InfoContext(ctx, "membership_giveaway",
		slog.String("membership_id", m.ID.String()),
		slog.String("subscription_id", sub.ID.String()))
	return m, sub, nil
}

func (s *Service) findOrCreateMembership(ctx context.Context, creatorID, fanID uuid.UUID) (*Membership, error) {
	m, err := s.store.FindMembership(ctx, creatorID, fanID)
	if err == nil {
		return m, nil
	}
	if err != ErrMembershipNotFound {
		return nil, err
	}

	now := s.now()
	m = &Membership{
		ID:        uuid.New(),
		CreatorID: creatorID,
		FanID:     fanID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// getOrCreatePlan memoizes plans by (tier, amount, period, interval) so
// repeated starts reuse one gateway plan. Zero-amount giveaway plans are
// never registered with the gateway.
func (s *Service) getOrCreatePlan(ctx context.Context, tier *Tier, amount money.Money, period Period, interval int) (*Plan, error) {
	plan, err := s.store.FindPlan(ctx, tier.ID, amount.SubUnit(), period, interval)
	if err == nil {
		return plan, nil
	}
	if err != ErrPlanNotFound {
		return nil, err
	}

	now := s.now()
	plan = &Plan{
		ID:        uuid.New(),
		TierID:    tier.ID,
		Name:      fmt.Sprintf("%s (%s)", tier.Name, period),
		Amount:    amount,
		Period:    period,
		Interval:  interval,
		CreatedAt: now,
	}

	if !amount.IsZero() {
		s.log.InfoContext(ctx, "external_plan_create_start", slog.String("tier_id", tier.ID.String()))
		gwPlan, err := s.gw.CreatePlan(ctx, gateway.PlanRequest{
			Name:          plan.Name,
			Period:        string(period),
			Interval:      interval,
			AmountSubUnit: amount.SubUnit(),
			Currency:      amount.Currency,
			Notes:         map[string]string{"tier_id": tier.ID.String()},
		})
		if err != nil {
			return nil, fmt.Errorf("register gateway plan: %w", err)
		}
		plan.ExternalID = gwPlan.ID
		s.log.InfoContext(ctx, "external_plan_create_end", slog.String("plan_external_id", gwPlan.ID))
	}

	if err := s.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}
