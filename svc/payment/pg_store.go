package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/pg"
)

// PGStore is the Postgres ledger store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore over pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) db(ctx context.Context) pg.Executor {
	return pg.ExecutorFromContext(ctx, s.pool)
}

func (s *PGStore) CreatePayment(ctx context.Context, p *Payment) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO payments (id, type, status, amount, currency, method, external_id, subscription_id, donation_id, creator_id, fan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Type, p.Status, p.Amount.Amount.String(), p.Amount.Currency, p.Method,
		p.ExternalID, p.SubscriptionID, p.DonationID, p.CreatorID, p.FanID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrPaymentAlreadyProcessed
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PGStore) FindPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, type, status, amount::text, currency, method, external_id, subscription_id, donation_id, creator_id, fan_id, created_at, updated_at
		FROM payments WHERE external_id = $1`, externalID)

	var (
		p         Payment
		amountStr string
		currency  string
	)
	err := row.Scan(&p.ID, &p.Type, &p.Status, &amountStr, &currency, &p.Method,
		&p.ExternalID, &p.SubscriptionID, &p.DonationID, &p.CreatorID, &p.FanID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}
	if p.Amount, err = parseAmount(amountStr, currency); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) CreatePayout(ctx context.Context, p *Payout) error {
	var transferID *string
	if p.ExternalTransferID != "" {
		transferID = &p.ExternalTransferID
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO payouts (id, payment_id, creator_id, amount, currency, status, bank_account_id, external_transfer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.PaymentID, p.CreatorID, p.Amount.Amount.String(), p.Amount.Currency,
		p.Status, p.BankAccountID, transferID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (s *PGStore) FindPayoutByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Payout, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, payment_id, creator_id, amount::text, currency, status, bank_account_id, COALESCE(external_transfer_id, ''), created_at, updated_at
		FROM payouts WHERE payment_id = $1`, paymentID)

	var (
		p         Payout
		amountStr string
		currency  string
	)
	err := row.Scan(&p.ID, &p.PaymentID, &p.CreatorID, &amountStr, &currency,
		&p.Status, &p.BankAccountID, &p.ExternalTransferID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("select payout: %w", err)
	}
	if p.Amount, err = parseAmount(amountStr, currency); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) UpdatePayoutStatusByTransferIDs(ctx context.Context, transferIDs []string, status PayoutStatus) (int, error) {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE payouts SET status = $2, updated_at = now()
		WHERE external_transfer_id = ANY($1)`, transferIDs, status)
	if err != nil {
		return 0, fmt.Errorf("update payouts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) CreateDonation(ctx context.Context, d *Donation) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO donations (id, creator_id, fan_id, amount, currency, message, order_external_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.CreatorID, d.FanID, d.Amount.Amount.String(), d.Amount.Currency,
		d.Message, d.OrderExternalID, d.Status, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

const donationColumns = `id, creator_id, fan_id, amount::text, currency, message, order_external_id, status, created_at, updated_at`

func (s *PGStore) GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	return scanDonation(row)
}

func (s *PGStore) GetDonationForUpdate(ctx context.Context, id uuid.UUID) (*Donation, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1 FOR UPDATE`, id)
	return scanDonation(row)
}

func (s *PGStore) FindDonationByOrderIDForUpdate(ctx context.Context, orderExternalID string) (*Donation, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+donationColumns+` FROM donations WHERE order_external_id = $1 FOR UPDATE`, orderExternalID)
	return scanDonation(row)
}

func (s *PGStore) UpdateDonation(ctx context.Context, d *Donation) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE donations SET status = $2, updated_at = $3 WHERE id = $1`,
		d.ID, d.Status, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update donation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDonationNotFound
	}
	return nil
}

func (s *PGStore) CreateBankAccount(ctx context.Context, b *BankAccount) error {
	var fee *string
	if b.FeePercent != nil {
		v := b.FeePercent.String()
		fee = &v
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO bank_accounts (id, creator_id, beneficiary, account_number, ifsc, external_id, status, fee_percent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.CreatorID, b.Beneficiary, b.AccountNumber, b.IFSC,
		b.ExternalID, b.Status, fee, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrBankAccountExists
		}
		return fmt.Errorf("insert bank account: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateBankAccount(ctx context.Context, b *BankAccount) error {
	var fee *string
	if b.FeePercent != nil {
		v := b.FeePercent.String()
		fee = &v
	}
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE bank_accounts SET status = $2, external_id = $3, fee_percent = $4, updated_at = $5
		WHERE id = $1`,
		b.ID, b.Status, b.ExternalID, fee, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBankAccountNotFound
	}
	return nil
}

func (s *PGStore) GetBankAccountByCreator(ctx context.Context, creatorID uuid.UUID) (*BankAccount, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, creator_id, beneficiary, account_number, ifsc, external_id, status, fee_percent::text, created_at, updated_at
		FROM bank_accounts WHERE creator_id = $1`, creatorID)

	var (
		b      BankAccount
		feeStr *string
	)
	err := row.Scan(&b.ID, &b.CreatorID, &b.Beneficiary, &b.AccountNumber, &b.IFSC,
		&b.ExternalID, &b.Status, &feeStr, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrBankAccountNotFound
		}
		return nil, fmt.Errorf("select bank account: %w", err)
	}
	if feeStr != nil {
		fee, err := decimal.NewFromString(*feeStr)
		if err != nil {
			return nil, fmt.Errorf("parse fee percent %q: %w", *feeStr, err)
		}
		b.FeePercent = &fee
	}
	return &b, nil
}

func (s *PGStore) SetCreatorPayoutsEnabled(ctx context.Context, creatorID uuid.UUID, enabled bool) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO creator_onboarding (creator_id, payouts_enabled, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (creator_id) DO UPDATE SET payouts_enabled = EXCLUDED.payouts_enabled, updated_at = now()`,
		creatorID, enabled)
	if err != nil {
		return fmt.Errorf("upsert creator onboarding: %w", err)
	}
	return nil
}

func scanDonation(row interface{ Scan(dest ...any) error }) (*Donation, error) {
	var (
		d         Donation
		amountStr string
		currency  string
	)
	err := row.Scan(&d.ID, &d.CreatorID, &d.FanID, &amountStr, &currency,
		&d.Message, &d.OrderExternalID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("scan donation: %w", err)
	}
	if d.Amount, err = parseAmount(amountStr, currency); err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAmount(amount, currency string) (money.Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return money.Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return money.New(dec, currency), nil
}

var _ Store = (*PGStore)(nil)
