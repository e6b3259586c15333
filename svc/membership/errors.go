package membership

import "errors"

var (
	// ErrMembershipExists is returned when starting a membership for a
	// (creator, fan) pair that already has a confirmed one.
	ErrMembershipExists = errors.New("membership already exists")

	// ErrAlreadyScheduled is returned when an update is attempted while a
	// previous plan change is still awaiting confirmation.
	ErrAlreadyScheduled = errors.New("membership change already scheduled")

	// ErrAlreadyCancelled is returned when cancelling a membership whose
	// subscription is already scheduled to cancel or cancelled.
	ErrAlreadyCancelled = errors.New("membership already cancelled")

	// ErrNoActiveSubscription is returned by operations that require a
	// current active subscription.
	ErrNoActiveSubscription = errors.New("membership has no active subscription")

	ErrMembershipNotFound   = errors.New("membership not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTierNotFound         = errors.New("tier not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidPeriod        = errors.New("invalid billing period")
)
