package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/gateway"
	"github.com/creatorkit/creatorkit/pkg/money"
	"github.com/creatorkit/creatorkit/pkg/queue"
	"github.com/creatorkit/creatorkit/svc/membership"
	"github.com/creatorkit/creatorkit/svc/payment"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	members *membership.MemoryStore
	store   *payment.MemoryStore
	gw      *gateway.Fake
	tasks   *queue.MemoryStorage
	clock   *fakeClock
	msvc    *membership.Service
	svc     *payment.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		members: membership.NewMemoryStore(),
		store:   payment.NewMemoryStore(),
		gw:      gateway.NewFake(),
		tasks:   queue.NewMemoryStorage(),
		clock:   &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}

	enqueuer, err := queue.NewEnqueuer(env.tasks)
	require.NoError(t, err)

	env.msvc = membership.NewService(env.members, env.members, env.gw, enqueuer,
		membership.WithClock(env.clock.Now))
	env.svc = payment.NewService(env.store, env.store, env.gw, enqueuer, env.members, env.msvc,
		payment.WithClock(env.clock.Now),
		payment.WithFeePercent(10))
	return env
}

func (e *testEnv) createTier(t *testing.T, amount string) *membership.Tier {
	t.Helper()
	tier := &membership.Tier{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		Name:      "Gold",
		Amount:    money.New(decimal.RequireFromString(amount), "INR"),
		CreatedAt: e.clock.Now(),
	}
	require.NoError(t, e.members.CreateTier(context.Background(), tier))
	return tier
}

// startCheckout begins a membership and seeds the gateway with a captured
// payment for it, returning the subscription and a valid confirmation.
func (e *testEnv) startCheckout(t *testing.T, tier *membership.Tier) (*membership.Subscription, payment.SubscriptionConfirmation) {
	t.Helper()
	ctx := context.Background()

	_, sub, err := e.msvc.Start(ctx, tier.CreatorID, uuid.New(), tier.ID, membership.PeriodMonthly)
	require.NoError(t, err)

	paymentID := "pay_" + uuid.NewString()[:8]
	e.gw.Payments[paymentID] = &gateway.Payment{
		ID:            paymentID,
		Status:        "captured",
		Method:        "card",
		AmountSubUnit: tier.Amount.SubUnit(),
		Currency:      tier.Amount.Currency,
	}

	e.clock.Advance(time.Second)
	return sub, payment.SubscriptionConfirmation{
		SubscriptionID:         sub.ID,
		ExternalSubscriptionID: sub.ExternalID,
		ExternalPaymentID:      paymentID,
		Signature:              e.gw.SignSubscription(sub.ExternalID, paymentID),
	}
}

func TestAuthenticateSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("records payment and activates", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		sub, conf := env.startCheckout(t, tier)

		p, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.NoError(t, err)

		assert.Equal(t, payment.TypeSubscription, p.Type)
		assert.Equal(t, payment.PaymentCaptured, p.Status)
		assert.Equal(t, "card", p.Method)
		assert.EqualValues(t, 50000, p.Amount.SubUnit(), "amount comes from the gateway, not the client")

		got, err := env.members.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusActive, got.Status)
		assert.Equal(t, "card", got.PaymentMethod)

		m, err := env.members.GetMembership(ctx, sub.MembershipID)
		require.NoError(t, err)
		require.NotNil(t, m.IsActive)
		assert.True(t, *m.IsActive)
	})

	t.Run("replay is rejected with one payment row", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		_, conf := env.startCheckout(t, tier)

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.NoError(t, err)
		_, err = env.svc.AuthenticateSubscription(ctx, conf)
		require.ErrorIs(t, err, payment.ErrPaymentAlreadyProcessed)

		assert.Len(t, env.store.Payments(), 1)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		_, conf := env.startCheckout(t, tier)
		conf.Signature = "forged"

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.ErrorIs(t, err, payment.ErrSignatureMismatch)
		assert.Empty(t, env.store.Payments())
	})

	t.Run("external id mismatch", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		_, conf := env.startCheckout(t, tier)
		conf.ExternalSubscriptionID = "sub_other"
		conf.Signature = env.gw.SignSubscription(conf.ExternalSubscriptionID, conf.ExternalPaymentID)

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.ErrorIs(t, err, payment.ErrSubscriptionMismatch)
	})

	t.Run("gateway id belongs to another subscription", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		_, conf := env.startCheckout(t, tier)

		// Valid signature and a live checkout, but the posted local id points
		// at someone else's subscription.
		conf.SubscriptionID = uuid.New()

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.ErrorIs(t, err, payment.ErrSubscriptionMismatch)
		assert.Empty(t, env.store.Payments())
	})

	t.Run("wrong state with a fresh payment id", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		sub, conf := env.startCheckout(t, tier)

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.NoError(t, err)

		// Same subscription, different payment id: not a ledger replay, but
		// the subscription is no longer awaiting confirmation.
		env.gw.Payments["pay_second"] = &gateway.Payment{
			ID: "pay_second", Status: "captured", Method: "card",
			AmountSubUnit: 50000, Currency: "INR",
		}
		conf2 := payment.SubscriptionConfirmation{
			SubscriptionID:         sub.ID,
			ExternalSubscriptionID: sub.ExternalID,
			ExternalPaymentID:      "pay_second",
			Signature:              env.gw.SignSubscription(sub.ExternalID, "pay_second"),
		}
		_, err = env.svc.AuthenticateSubscription(ctx, conf2)
		require.ErrorIs(t, err, payment.ErrInvalidSubscriptionState)
	})

	t.Run("schedules activation when cycle has not started", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		sub, conf := env.startCheckout(t, tier)

		// Push the cycle start into the future before confirming.
		sub.CycleStartAt = env.clock.Now().Add(24 * time.Hour)
		require.NoError(t, env.members.UpdateSubscription(ctx, sub))

		_, err := env.svc.AuthenticateSubscription(ctx, conf)
		require.NoError(t, err)

		got, err := env.members.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusScheduledToActivate, got.Status)
	})
}

func TestCaptureDonation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newDonation := func(t *testing.T, env *testEnv, amount string) (*payment.Donation, payment.DonationConfirmation) {
		t.Helper()
		d, err := env.svc.CreateDonation(ctx, uuid.New(), uuid.New(),
			money.New(decimal.RequireFromString(amount), "INR"), "keep it up")
		require.NoError(t, err)

		paymentID := "pay_" + uuid.NewString()[:8]
		return d, payment.DonationConfirmation{
			DonationID:        d.ID,
			ExternalOrderID:   d.OrderExternalID,
			ExternalPaymentID: paymentID,
			Signature:         env.gw.SignOrder(d.OrderExternalID, paymentID),
		}
	}

	t.Run("captures and records", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		d, conf := newDonation(t, env, "150")

		p, err := env.svc.CaptureDonation(ctx, conf)
		require.NoError(t, err)
		assert.Equal(t, payment.TypeDonation, p.Type)
		assert.EqualValues(t, 15000, p.Amount.SubUnit())

		got, err := env.store.GetDonationForUpdate(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.DonationSuccessful, got.Status)

		var notified bool
		for _, task := range env.tasks.Tasks() {
			if task.Name == "payment.DonationReceivedNotification" {
				notified = true
			}
		}
		assert.True(t, notified)
	})

	t.Run("replay is rejected", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		_, conf := newDonation(t, env, "150")

		_, err := env.svc.CaptureDonation(ctx, conf)
		require.NoError(t, err)
		_, err = env.svc.CaptureDonation(ctx, conf)
		require.ErrorIs(t, err, payment.ErrPaymentAlreadyProcessed)
		assert.Len(t, env.store.Payments(), 1)
	})

	t.Run("order mismatch", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		_, conf := newDonation(t, env, "150")
		conf.ExternalOrderID = "order_other"
		conf.Signature = env.gw.SignOrder(conf.ExternalOrderID, conf.ExternalPaymentID)

		_, err := env.svc.CaptureDonation(ctx, conf)
		require.ErrorIs(t, err, payment.ErrDonationMismatch)
	})
}

func TestPayoutForPayment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	linkAccount := func(t *testing.T, env *testEnv, creatorID uuid.UUID) *payment.BankAccount {
		t.Helper()
		_, err := env.svc.AddBankAccount(ctx, creatorID, payment.BankAccountDetails{
			Beneficiary:   "Asha",
			AccountNumber: "000111222333",
			IFSC:          "HDFC0000001",
		})
		require.NoError(t, err)
		b, err := env.svc.LinkBankAccount(ctx, creatorID, "acc_test")
		require.NoError(t, err)
		return b
	}

	capturedPayment := func(t *testing.T, env *testEnv, creatorID uuid.UUID, amount string) *payment.Payment {
		t.Helper()
		now := env.clock.Now()
		p := &payment.Payment{
			ID:         uuid.New(),
			Type:       payment.TypeDonation,
			Status:     payment.PaymentCaptured,
			Amount:     money.New(decimal.RequireFromString(amount), "INR"),
			Method:     "card",
			ExternalID: "pay_" + uuid.NewString()[:8],
			CreatorID:  creatorID,
			FanID:      uuid.New(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, env.store.CreatePayment(ctx, p))
		return p
	}

	t.Run("deducts fee and transfers once", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		creatorID := uuid.New()
		linkAccount(t, env, creatorID)
		p := capturedPayment(t, env, creatorID, "500")

		payout, err := env.svc.PayoutForPayment(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutScheduled, payout.Status)
		assert.EqualValues(t, 45000, payout.Amount.SubUnit(), "10% platform fee")
		assert.NotEmpty(t, payout.ExternalTransferID)
		require.Len(t, env.gw.Transfers, 1)

		// Retry returns the same payout without a second transfer.
		again, err := env.svc.PayoutForPayment(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, payout.ID, again.ID)
		assert.Len(t, env.gw.Transfers, 1)
	})

	t.Run("per-creator fee override", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		creatorID := uuid.New()
		b := linkAccount(t, env, creatorID)

		fee := decimal.NewFromInt(20)
		b.FeePercent = &fee
		require.NoError(t, env.store.UpdateBankAccount(ctx, b))

		p := capturedPayment(t, env, creatorID, "500")
		payout, err := env.svc.PayoutForPayment(ctx, p)
		require.NoError(t, err)
		assert.EqualValues(t, 40000, payout.Amount.SubUnit())
	})

	t.Run("no linked account defers the transfer", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		p := capturedPayment(t, env, uuid.New(), "500")

		payout, err := env.svc.PayoutForPayment(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutScheduled, payout.Status)
		assert.Empty(t, payout.ExternalTransferID)
		assert.Empty(t, env.gw.Transfers)
	})

	t.Run("transfer and settlement webhooks advance status", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		creatorID := uuid.New()
		linkAccount(t, env, creatorID)
		p := capturedPayment(t, env, creatorID, "500")

		payout, err := env.svc.PayoutForPayment(ctx, p)
		require.NoError(t, err)

		require.NoError(t, env.svc.MarkTransfersProcessed(ctx, []string{payout.ExternalTransferID}))
		got, err := env.store.FindPayoutByPaymentID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutProcessed, got.Status)

		env.gw.SettlementTransfers["setl_1"] = []string{payout.ExternalTransferID}
		require.NoError(t, env.svc.MarkSettlementProcessed(ctx, "setl_1"))
		got, err = env.store.FindPayoutByPaymentID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.PayoutSettled, got.Status)
	})
}

func TestRecordGiveaway(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	sub := &membership.Subscription{
		ID:            uuid.New(),
		CreatorID:     uuid.New(),
		FanID:         uuid.New(),
		ExternalID:    "giveaway_" + uuid.NewString(),
		PaymentMethod: membership.PaymentMethodGiveaway,
	}
	require.NoError(t, env.svc.RecordGiveaway(ctx, sub, money.Zero("INR")))

	payments := env.store.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, payment.PaymentCaptured, payments[0].Status)
	assert.Equal(t, membership.PaymentMethodGiveaway, payments[0].Method)
	assert.True(t, payments[0].Amount.IsZero())

	payouts := env.store.Payouts()
	require.Len(t, payouts, 1)
	assert.Equal(t, payment.PayoutProcessed, payouts[0].Status)
	assert.Empty(t, env.gw.Transfers, "giveaways never touch the gateway")
}

func TestBankAccounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("at most one per creator", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		creatorID := uuid.New()

		_, err := env.svc.AddBankAccount(ctx, creatorID, payment.BankAccountDetails{AccountNumber: "1"})
		require.NoError(t, err)
		_, err = env.svc.AddBankAccount(ctx, creatorID, payment.BankAccountDetails{AccountNumber: "2"})
		require.ErrorIs(t, err, payment.ErrBankAccountExists)
	})

	t.Run("linking enables payouts", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		creatorID := uuid.New()

		_, err := env.svc.AddBankAccount(ctx, creatorID, payment.BankAccountDetails{AccountNumber: "1"})
		require.NoError(t, err)
		assert.False(t, env.store.PayoutsEnabled(creatorID))

		b, err := env.svc.LinkBankAccount(ctx, creatorID, "acc_test")
		require.NoError(t, err)
		assert.True(t, b.Linked())
		assert.True(t, env.store.PayoutsEnabled(creatorID))
	})
}

func TestRecordDonationPaid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown order is ignored", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		p, err := env.svc.RecordDonationPaid(ctx, "order_unknown", "pay_x")
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Empty(t, env.store.Payments())
	})

	t.Run("records once under replay", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		d, err := env.svc.CreateDonation(ctx, uuid.New(), uuid.New(),
			money.MustParse("150", "INR"), "")
		require.NoError(t, err)

		env.gw.Payments["pay_dp"] = &gateway.Payment{
			ID: "pay_dp", Status: "captured", Method: "upi",
			AmountSubUnit: 15000, Currency: "INR",
		}

		p1, err := env.svc.RecordDonationPaid(ctx, d.OrderExternalID, "pay_dp")
		require.NoError(t, err)
		require.NotNil(t, p1)
		p2, err := env.svc.RecordDonationPaid(ctx, d.OrderExternalID, "pay_dp")
		require.NoError(t, err)
		require.NotNil(t, p2)

		assert.Equal(t, p1.ID, p2.ID)
		assert.Len(t, env.store.Payments(), 1)
		assert.Len(t, env.store.Payouts(), 1)
	})
}
