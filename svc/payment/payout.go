package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/svc/membership"
)

// PayoutForPayment gets or creates the payout for a payment. The external
// transfer is issued only when the row is first created, never on a lookup
// hit, so concurrent retries cannot double-transfer.
func (s *Service) PayoutForPayment(ctx context.Context, p *Payment) (*Payout, error) {
	existing, err := s.store.FindPayoutByPaymentID(ctx, p.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrPayoutNotFound) {
		return nil, err
	}

	fee := s.feePercent
	var accountID *uuid.UUID
	var externalAccountID string
	account, err := s.store.GetBankAccountByCreator(ctx, p.CreatorID)
	switch {
	case err == nil:
		if account.FeePercent != nil {
			fee = *account.FeePercent
		}
		if account.Linked() {
			accountID = &account.ID
			externalAccountID = account.ExternalID
		}
	case errors.Is(err, ErrBankAccountNotFound):
		// Payout stays scheduled without a transfer until the creator links
		// an account.
	default:
		return nil, err
	}

	now := s.now()
	payout := &Payout{
		ID:            uuid.New(),
		PaymentID:     p.ID,
		CreatorID:     p.CreatorID,
		Amount:        money.DeductPlatformFee(p.Amount, fee),
		Status:        PayoutScheduled,
		BankAccountID: accountID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if accountID != nil && !payout.Amount.IsZero() {
		transfer, err := s.gw.CreateTransfer(ctx, p.ExternalID, gateway.TransferRequest{
			AccountID:     externalAccountID,
			AmountSubUnit: payout.Amount.SubUnit(),
			Currency:      payout.Amount.Currency,
		})
		if err != nil {
			return nil, fmt.Errorf("create gateway transfer: %w", err)
		}
		payout.ExternalTransferID = transfer.ID
	}

	if err := s.store.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "payout_scheduled",
		slog.String("payout_id", payout.ID.String()),
		slog.String("payment_id", p.ID.String()),
		slog.String("amount", payout.Amount.String()))
	return payout, nil
}

// MarkTransfersProcessed handles the transfer.processed webhook: payouts
// whose transfer ids appear in the event move to processed.
func (s *Service) MarkTransfersProcessed(ctx context.Context, transferIDs []string) error {
	if len(transferIDs) == 0 {
		return nil
	}
	n, err := s.store.UpdatePayoutStatusByTransferIDs(ctx, transferIDs, PayoutProcessed)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "payouts_processed", slog.Int("count", n))
	return nil
}

// MarkSettlementProcessed handles the settlement.processed webhook: the
// settlement's transfers are listed from the gateway and the matching payouts
// move to settled.
func (s *Service) MarkSettlementProcessed(ctx context.Context, settlementID string) error {
	transfers, err := s.gw.ListSettlementTransfers(ctx, settlementID)
	if err != nil {
		return fmt.Errorf("list settlement transfers: %w", err)
	}
	ids := make([]string, 0, len(transfers))
	for _, t := range transfers {
		ids = append(ids, t.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	n, err := s.store.UpdatePayoutStatusByTransferIDs(ctx, ids, PayoutSettled)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "payouts_settled",
		slog.String("settlement_id", settlementID),
		slog.Int("count", n))
	return nil
}

// RecordGiveaway writes the synthetic ledger entries for a creator-granted
// membership: a captured zero-amount Payment and a processed Payout, neither
// of which touches the gateway. Implements the membership service's ledger
// boundary.
func (s *Service) RecordGiveaway(ctx context.Context, sub *membership.Subscription, amount money.Money) error {
	now := s.now()
	p := &Payment{
		ID:             uuid.New(),
		Type:           TypeSubscription,
		Status:         PaymentCaptured,
		Amount:         amount,
		Method:         membership.PaymentMethodGiveaway,
		ExternalID:     sub.ExternalID,
		SubscriptionID: &sub.ID,
		CreatorID:      sub.CreatorID,
		FanID:          sub.FanID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return err
	}

	payout := &Payout{
		ID:        uuid.New(),
		PaymentID: p.ID,
		CreatorID: p.CreatorID,
		Amount:    amount,
		Status:    PayoutProcessed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.store.CreatePayout(ctx, payout)
}

var _ membership.GiveawayLedger = (*Service)(nil)
