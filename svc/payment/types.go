package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/creatorkit/creatorkit/pkg/money"
)

// PaymentType distinguishes recurring membership charges from one-shot tips.
type PaymentType string

const (
	TypeSubscription PaymentType = "subscription"
	TypeDonation     PaymentType = "donation"
)

// PaymentStatus is the ledger status of a Payment.
type PaymentStatus string

const (
	PaymentCreated    PaymentStatus = "created"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentFailed     PaymentStatus = "failed"
)

// Payment is an immutable-once-captured record of money received. ExternalID
// is the gateway payment id and the idempotency key: exactly one row per
// confirmed gateway payment.
type Payment struct {
	ID     uuid.UUID
	Type   PaymentType
	Status PaymentStatus
	Amount money.Money
	Method string

	ExternalID     string
	SubscriptionID *uuid.UUID
	DonationID     *uuid.UUID
	CreatorID      uuid.UUID
	FanID          uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PayoutStatus tracks a transfer to the creator's bank account.
type PayoutStatus string

const (
	PayoutScheduled PayoutStatus = "scheduled"
	PayoutProcessed PayoutStatus = "processed"
	PayoutSettled   PayoutStatus = "settled"
)

// Payout is the creator's share of one Payment. At most one per Payment.
type Payout struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	CreatorID uuid.UUID
	Amount    money.Money
	Status    PayoutStatus

	BankAccountID      *uuid.UUID
	ExternalTransferID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DonationStatus is the lifecycle of a one-shot payment intent.
type DonationStatus string

const (
	DonationPending    DonationStatus = "pending"
	DonationSuccessful DonationStatus = "successful"
	DonationFailed     DonationStatus = "failed"
)

// Donation is a non-recurring payment intent paired with a gateway order.
type Donation struct {
	ID        uuid.UUID
	CreatorID uuid.UUID
	FanID     uuid.UUID
	Amount    money.Money
	Message   string

	OrderExternalID string
	Status          DonationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BankAccountStatus is the linking lifecycle of a payout destination.
type BankAccountStatus string

const (
	BankAccountCreated    BankAccountStatus = "created"
	BankAccountProcessing BankAccountStatus = "processing"
	BankAccountLinked     BankAccountStatus = "linked"
)

// BankAccount is a creator's payout destination; a creator has at most one.
// FeePercent, when set, overrides the platform-wide fee for this creator.
type BankAccount struct {
	ID            uuid.UUID
	CreatorID     uuid.UUID
	Beneficiary   string
	AccountNumber string
	IFSC          string

	ExternalID string
	Status     BankAccountStatus
	FeePercent *decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Linked reports whether the account can receive transfers.
func (b *BankAccount) Linked() bool {
	return b.Status == BankAccountLinked
}
