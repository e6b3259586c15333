package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/svc/membership"
)

// Transactor runs a function inside one database transaction. Confirmation
// flows and webhook handlers wrap their whole critical section in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the ledger persistence boundary.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	FindPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error)

	CreatePayout(ctx context.Context, p *Payout) error
	FindPayoutByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Payout, error)
	// UpdatePayoutStatusByTransferIDs bulk-updates payouts matched by external
	// transfer id and returns how many rows changed.
	UpdatePayoutStatusByTransferIDs(ctx context.Context, transferIDs []string, status PayoutStatus) (int, error)

	CreateDonation(ctx context.Context, d *Donation) error
	GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error)
	GetDonationForUpdate(ctx context.Context, id uuid.UUID) (*Donation, error)
	FindDonationByOrderIDForUpdate(ctx context.Context, orderExternalID string) (*Donation, error)
	UpdateDonation(ctx context.Context, d *Donation) error

	CreateBankAccount(ctx context.Context, b *BankAccount) error
	UpdateBankAccount(ctx context.Context, b *BankAccount) error
	GetBankAccountByCreator(ctx context.Context, creatorID uuid.UUID) (*BankAccount, error)

	// SetCreatorPayoutsEnabled flips the creator's onboarding flag; called
	// explicitly from the bank-account linking path.
	SetCreatorPayoutsEnabled(ctx context.Context, creatorID uuid.UUID, enabled bool) error
}

// Subscriptions is the slice of the membership store the ledger needs: the
// row-locked reads for confirmation, the method write-back, and plan lookup
// for cycle arithmetic.
type Subscriptions interface {
	GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*membership.Subscription, error)
	FindCreatedSubscriptionForUpdate(ctx context.Context, externalID string) (*membership.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *membership.Subscription) error
	GetPlan(ctx context.Context, id uuid.UUID) (*membership.Plan, error)
}

// SubscriptionLifecycle is the slice of the membership service that moves
// subscriptions through their state machine.
type SubscriptionLifecycle interface {
	Authenticate(ctx context.Context, sub *membership.Subscription) error
	Activate(ctx context.Context, sub *membership.Subscription) error
	CanActivate(ctx context.Context, sub *membership.Subscription) bool
	ScheduleToActivate(ctx context.Context, sub *membership.Subscription) error
}
