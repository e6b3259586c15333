package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/pg"
)

// PGStore is the Postgres Store. Amounts travel as numeric text to keep
// decimal exactness through the driver.
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

func (s *PGStore) CreateTier(ctx context.Context, tier *Tier) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO tiers (id, creator_id, name, amount, currency, benefits, is_public, is_recommended, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tier.ID, tier.CreatorID, tier.Name, tier.Amount.Amount.String(), tier.Amount.Currency,
		tier.Benefits, tier.IsPublic, tier.IsRecommended, tier.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tier: %w", err)
	}
	return nil
}

func (s *PGStore) GetTier(ctx context.Context, id uuid.UUID) (*Tier, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, creator_id, name, amount::text, currency, benefits, is_public, is_recommended, created_at
		FROM tiers WHERE id = $1`, id)

	var (
		t         Tier
		amountStr string
		currency  string
	)
	err := row.Scan(&t.ID, &t.CreatorID, &t.Name, &amountStr, &currency, &t.Benefits, &t.IsPublic, &t.IsRecommended, &t.CreatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("select tier: %w", err)
	}
	if t.Amount, err = parseMoney(amountStr, currency); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PGStore) CreatePlan(ctx context.Context, plan *Plan) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO plans (id, tier_id, name, amount, currency, period, "interval", external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		plan.ID, plan.TierID, plan.Name, plan.Amount.Amount.String(), plan.Amount.Currency,
		plan.Period, plan.Interval, plan.ExternalID, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

const planColumns = `id, tier_id, name, amount::text, currency, period, "interval", external_id, created_at`

func (s *PGStore) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	return scanPlan(row)
}

func (s *PGStore) FindPlan(ctx context.Context, tierID uuid.UUID, amountSubUnit int64, period Period, interval int) (*Plan, error) {
	// Sub-unit comparison happens in application space; plans per tier are
	// few, so fetch candidates by the indexed tuple parts.
	rows, err := s.db(ctx).Query(ctx, `
		SELECT `+planColumns+` FROM plans
		WHERE tier_id = $1 AND period = $2 AND "interval" = $3`,
		tierID, period, interval)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		if plan.Amount.SubUnit() == amountSubUnit {
			return plan, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return nil, ErrPlanNotFound
}

func (s *PGStore) CreateMembership(ctx context.Context, m *Membership) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO memberships (id, creator_id, fan_id, tier_id, is_active, active_subscription_id, scheduled_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.CreatorID, m.FanID, m.TierID, m.IsActive, m.ActiveSubscriptionID, m.ScheduledSubscriptionID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrMembershipExists
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateMembership(ctx context.Context, m *Membership) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE memberships SET
			tier_id = $2,
			is_active = $3,
			active_subscription_id = $4,
			scheduled_subscription_id = $5,
			updated_at = $6
		WHERE id = $1`,
		m.ID, m.TierID, m.IsActive, m.ActiveSubscriptionID, m.ScheduledSubscriptionID, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

const membershipColumns = `id, creator_id, fan_id, tier_id, is_active, active_subscription_id, scheduled_subscription_id, created_at, updated_at`

func (s *PGStore) GetMembership(ctx context.Context, id uuid.UUID) (*Membership, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	return scanMembership(row)
}

func (s *PGStore) GetMembershipForUpdate(ctx context.Context, id uuid.UUID) (*Membership, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1 FOR UPDATE`, id)
	return scanMembership(row)
}

func (s *PGStore) FindMembership(ctx context.Context, creatorID, fanID uuid.UUID) (*Membership, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM memberships WHERE creator_id = $1 AND fan_id = $2`,
		creatorID, fanID)
	return scanMembership(row)
}

func (s *PGStore) ListActiveMembershipIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id FROM memberships WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("select active memberships: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO subscriptions (id, membership_id, plan_id, creator_id, fan_id, status, external_id, payment_method, cycle_start_at, cycle_end_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.MembershipID, sub.PlanID, sub.CreatorID, sub.FanID, sub.Status, sub.ExternalID,
		sub.PaymentMethod, sub.CycleStartAt, sub.CycleEndAt, sub.IsActive, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE subscriptions SET
			status = $2,
			external_id = $3,
			payment_method = $4,
			cycle_start_at = $5,
			cycle_end_at = $6,
			is_active = $7,
			updated_at = $8
		WHERE id = $1`,
		sub.ID, sub.Status, sub.ExternalID, sub.PaymentMethod, sub.CycleStartAt, sub.CycleEndAt, sub.IsActive, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

const subscriptionColumns = `id, membership_id, plan_id, creator_id, fan_id, status, external_id, payment_method, cycle_start_at, cycle_end_at, is_active, created_at, updated_at`

func (s *PGStore) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

func (s *PGStore) GetSubscriptionForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
	return scanSubscription(row)
}

func (s *PGStore) FindCreatedSubscriptionForUpdate(ctx context.Context, externalID string) (*Subscription, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE external_id = $1 AND status = 'created'
		FOR UPDATE`, externalID)
	return scanSubscription(row)
}

func (s *PGStore) FindSubscriptionForUpdate(ctx context.Context, externalID, planExternalID string) (*Subscription, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT `+prefixedSubscriptionColumns("s")+` FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.external_id = $1 AND p.external_id = $2
		FOR UPDATE OF s`, externalID, planExternalID)
	return scanSubscription(row)
}

func (s *PGStore) UpsertFollow(ctx context.Context, creatorID, fanID uuid.UUID) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO follows (creator_id, fan_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (creator_id, fan_id) DO NOTHING`,
		creatorID, fanID)
	if err != nil {
		return fmt.Errorf("upsert follow: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p         Plan
		amountStr string
		currency  string
	)
	err := row.Scan(&p.ID, &p.TierID, &p.Name, &amountStr, &currency, &p.Period, &p.Interval, &p.ExternalID, &p.CreatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	if p.Amount, err = parseMoney(amountStr, currency); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMembership(row rowScanner) (*Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.CreatorID, &m.FanID, &m.TierID, &m.IsActive, &m.ActiveSubscriptionID, &m.ScheduledSubscriptionID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return &m, nil
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.MembershipID, &sub.PlanID, &sub.CreatorID, &sub.FanID, &sub.Status, &sub.ExternalID,
		&sub.PaymentMethod, &sub.CycleStartAt, &sub.CycleEndAt, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

func prefixedSubscriptionColumns(alias string) string {
	return alias + ".id, " + alias + ".membership_id, " + alias + ".plan_id, " + alias + ".creator_id, " + alias + ".fan_id, " +
		alias + ".status, " + alias + ".external_id, " + alias + ".payment_method, " + alias + ".cycle_start_at, " +
		alias + ".cycle_end_at, " + alias + ".is_active, " + alias + ".created_at, " + alias + ".updated_at"
}

func parseMoney(amount, currency string) (money.Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return money.Money{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return money.New(dec, currency), nil
}

var _ Store = (*PGStore)(nil)
