package membership

import (
	"context"

	"github.com/google/uuid"
)

// Transactor runs fn inside one database transaction. Store calls made with
// the ctx passed to fn join that transaction, and ForUpdate reads take row
// locks held until it ends. The memory implementation serializes
// transactions instead.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store persists the membership domain. "ForUpdate" variants lock the row
// for the remainder of the enclosing transaction; they are the only way
// status-mutating code may read a Subscription or Membership.
type Store interface {
	CreateTier(ctx context.Context, tier *Tier) error
	GetTier(ctx context.Context, id uuid.UUID) (*Tier, error)

	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)
	// FindPlan looks up the memoized plan by its identity tuple. Returns
	// ErrPlanNotFound when absent.
	FindPlan(ctx context.Context, tierID uuid.UUID, amountSubUnit int64, period Period, interval int) (*Plan, error)

	CreateMembership(ctx context.Context, m *Membership) error
	UpdateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, id uuid.UUID) (*Membership, error)
	GetMembershipForUpdate(ctx context.Context, id uuid.UUID) (*Membership, error)
	// FindMembership returns the row for a (creator, fan) pair, or
	// ErrMembershipNotFound.
	FindMembership(ctx context.Context, creatorID, fanID uuid.UUID) (*Membership, error)
	// ListActiveMembershipIDs returns ids of memberships with IsActive true,
	// for the drift-correction sweep.
	ListActiveMembershipIDs(ctx context.Context) ([]uuid.UUID, error)

	CreateSubscription(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindCreatedSubscriptionForUpdate locks the unique created-status row
	// with the given external id. Used by payment confirmation; absence means
	// the payment was already processed.
	FindCreatedSubscriptionForUpdate(ctx context.Context, externalID string) (*Subscription, error)
	// FindSubscriptionForUpdate locks the row matching (external id, plan
	// external id). Two rows share an external id after an in-place plan
	// change; the plan disambiguates which one the webhook refers to.
	FindSubscriptionForUpdate(ctx context.Context, externalID, planExternalID string) (*Subscription, error)

	// UpsertFollow establishes a follow relationship if absent.
	UpsertFollow(ctx context.Context, creatorID, fanID uuid.UUID) error
}
