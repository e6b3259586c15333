// Package payment is the money ledger: Payment rows recorded idempotently
// from gateway confirmations, Payout rows transferring creator earnings, and
// the Donation and BankAccount entities around them.
//
// Every write path is keyed on a gateway-assigned external id, so replays of
// the same confirmation or webhook never double-record money movement.
package payment
