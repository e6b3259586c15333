package membership

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/money"
)

// SubscriptionStatus is the lifecycle state of a Subscription.
type SubscriptionStatus string

const (
	StatusCreated             SubscriptionStatus = "created"
	StatusAuthenticated       SubscriptionStatus = "authenticated"
	StatusActive              SubscriptionStatus = "active"
	StatusScheduledToActivate SubscriptionStatus = "scheduled_to_activate"
	StatusPending             SubscriptionStatus = "pending"
	StatusHalted              SubscriptionStatus = "halted"
	StatusScheduledToCancel   SubscriptionStatus = "scheduled_to_cancel"
	StatusCancelled           SubscriptionStatus = "cancelled"

	// Reserved for future use; no transition targets them yet.
	StatusPaused    SubscriptionStatus = "paused"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCompleted SubscriptionStatus = "completed"
)

// Period is a billing period.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Valid reports whether p is a supported billing period.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// termCount is how many cycles a gateway subscription is registered for per
// unit interval; the gateway requires a finite total count.
func (p Period) termCount() int {
	switch p {
	case PeriodWeekly:
		return 52
	case PeriodMonthly:
		return 12
	case PeriodYearly:
		return 1
	}
	return 0
}

// NextCycleEnd returns the end of one billing cycle starting at start.
func (p Period) NextCycleEnd(start time.Time, interval int) time.Time {
	if interval <= 0 {
		interval = 1
	}
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7*interval)
	case PeriodYearly:
		return start.AddDate(interval, 0, 0)
	default:
		return start.AddDate(0, interval, 0)
	}
}

// PaymentMethodUPI cannot be updated in place at the gateway; plan changes
// on a UPI subscription always create a fresh gateway subscription.
const PaymentMethodUPI = "upi"

// PaymentMethodGiveaway marks creator-granted subscriptions that never touch
// the gateway.
const PaymentMethodGiveaway = "giveaway"

// giveawayExternalPrefix prefixes the sentinel external ids of giveaway
// subscriptions, which have no gateway-side object.
const giveawayExternalPrefix = "giveaway_"

// Tier is a creator-defined subscription level.
type Tier struct {
	ID            uuid.UUID
	CreatorID     uuid.UUID
	Name          string
	Amount        money.Money
	Benefits      []string
	IsPublic      bool
	IsRecommended bool
	CreatedAt     time.Time
}

// Plan is an immutable (tier, amount, period, interval) tuple mirrored to
// the gateway. Plans are memoized by that tuple and never garbage-collected;
// orphans from giveaways or custom amounts stay around.
type Plan struct {
	ID         uuid.UUID
	TierID     uuid.UUID
	Name       string
	Amount     money.Money
	Period     Period
	Interval   int
	ExternalID string
	CreatedAt  time.Time
}

// Subscription is the core billing entity. It is never deleted, only
// transitioned.
type Subscription struct {
	ID           uuid.UUID
	MembershipID uuid.UUID
	PlanID       uuid.UUID
	CreatorID    uuid.UUID
	FanID        uuid.UUID
	Status       SubscriptionStatus

	// ExternalID identifies the gateway-side subscription. Unique except for
	// the in-place plan-change case, where the outgoing and incoming rows
	// deliberately share it.
	ExternalID    string
	PaymentMethod string
	CycleStartAt  time.Time
	CycleEndAt    time.Time
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsGiveaway reports whether the subscription was creator-granted and has no
// gateway object behind it.
func (s *Subscription) IsGiveaway() bool {
	return s.PaymentMethod == PaymentMethodGiveaway || strings.HasPrefix(s.ExternalID, giveawayExternalPrefix)
}

// Membership is the aggregate fans see: one row per (creator, fan).
// ActiveSubscriptionID and ScheduledSubscriptionID are weak references — the
// subscription lifecycle belongs to the state machine, never to Membership.
type Membership struct {
	ID        uuid.UUID
	CreatorID uuid.UUID
	FanID     uuid.UUID
	TierID    *uuid.UUID

	// IsActive is tri-state: nil means never confirmed (created and
	// abandoned), true/false reflect the last confirmed state.
	IsActive *bool

	ActiveSubscriptionID    *uuid.UUID
	ScheduledSubscriptionID *uuid.UUID
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Confirmed reports whether the membership ever reached a confirmed state.
func (m *Membership) Confirmed() bool {
	return m.IsActive != nil
}

// Follow is the creator-fan follow relationship; giveaways force-establish
// it so gifted members see the creator's feed.
type Follow struct {
	CreatorID uuid.UUID
	FanID     uuid.UUID
	CreatedAt time.Time
}
