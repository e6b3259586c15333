package payment

import "errors"

var (
	// ErrSignatureMismatch is returned when a confirmation payload fails
	// gateway signature verification.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrPaymentAlreadyProcessed is returned on replay of an already-recorded
	// gateway payment id. The ledger is unaffected; the caller is told so it
	// surfaces clearly.
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")

	// ErrSubscriptionMismatch is returned when the payload's gateway
	// subscription id does not belong to the referenced subscription.
	ErrSubscriptionMismatch = errors.New("subscription mismatch")

	// ErrDonationMismatch is returned when the payload's gateway order id
	// does not belong to the referenced donation.
	ErrDonationMismatch = errors.New("donation mismatch")

	// ErrInvalidSubscriptionState is returned when the subscription is not
	// awaiting payment confirmation.
	ErrInvalidSubscriptionState = errors.New("invalid subscription state")

	// ErrInvalidDonationState is returned when the donation is not pending.
	ErrInvalidDonationState = errors.New("invalid donation state")

	// ErrBankAccountExists is returned when adding a second bank account for
	// the same creator.
	ErrBankAccountExists = errors.New("bank account already exists")

	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrDonationNotFound    = errors.New("donation not found")
	ErrBankAccountNotFound = errors.New("bank account not found")
)
