package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// BankAccountDetails is the creator-supplied payout destination.
type BankAccountDetails struct {
	Beneficiary   string
	AccountNumber string
	IFSC          string
}

// AddBankAccount registers a creator's payout destination in processing
// state. A creator may have at most one.
func (s *Service) AddBankAccount(ctx context.Context, creatorID uuid.UUID, details BankAccountDetails) (*BankAccount, error) {
	if _, err := s.store.GetBankAccountByCreator(ctx, creatorID); err == nil {
		return nil, ErrBankAccountExists
	} else if !errors.Is(err, ErrBankAccountNotFound) {
		return nil, err
	}

	now := s.now()
	b := &BankAccount{
		ID:            uuid.New(),
		CreatorID:     creatorID,
		Beneficiary:   details.Beneficiary,
		AccountNumber: details.AccountNumber,
		IFSC:          details.IFSC,
		Status:        BankAccountProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateBankAccount(ctx, b); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "bank_account_added",
		slog.String("creator_id", creatorID.String()),
		slog.String("bank_account_id", b.ID.String()))
	return b, nil
}

// LinkBankAccount marks the creator's account linked with its gateway-side
// account id and flips the creator's payout onboarding flag in the same
// call — the onboarding change is an explicit part of linking, not a side
// channel.
func (s *Service) LinkBankAccount(ctx context.Context, creatorID uuid.UUID, externalAccountID string) (*BankAccount, error) {
	var b *BankAccount
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.store.GetBankAccountByCreator(ctx, creatorID)
		if err != nil {
			return err
		}
		b.Status = BankAccountLinked
		b.ExternalID = externalAccountID
		b.UpdatedAt = s.now()
		if err := s.store.UpdateBankAccount(ctx, b); err != nil {
			return err
		}
		return s.store.SetCreatorPayoutsEnabled(ctx, creatorID, true)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "bank_account_linked",
		slog.String("creator_id", creatorID.String()),
		slog.String("external_account_id", externalAccountID))
	return b, nil
}
