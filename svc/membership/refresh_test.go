package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/svc/membership"
)

func TestRefreshMembership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("noop mid-cycle", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusActive, got.Status)
	})

	t.Run("noop for unconfirmed membership", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, _, err := env.svc.Start(ctx, tier.CreatorID, uuid.New(), tier.ID, membership.PeriodMonthly)
		require.NoError(t, err)

		env.clock.Advance(90 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, got.Confirmed())
	})

	t.Run("starts renewal once the cycle lapses", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		env.clock.Advance(32 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusPending, got.Status)
		assert.Contains(t, env.taskNames(), "membership.RenewalFailedNotification")

		// Access is kept during the grace window.
		got2, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got2.IsActive)
		assert.True(t, *got2.IsActive)
	})

	t.Run("halts after the grace period", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		env.clock.Advance(32 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))
		env.clock.Advance(4 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusHalted, got.Status)
		assert.False(t, got.IsActive)

		gotM, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, gotM.IsActive)
		assert.False(t, *gotM.IsActive)
		assert.Contains(t, env.taskNames(), "membership.MembershipHaltedNotification")
	})

	t.Run("halts directly when both guards hold", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		// Well past cycle end plus grace in one jump: halt wins over renewal.
		env.clock.Advance(60 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusHalted, got.Status)
	})

	t.Run("finalizes a scheduled cancellation", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		_, err := env.svc.Cancel(ctx, m.ID)
		require.NoError(t, err)

		env.clock.Advance(32 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusCancelled, got.Status)

		gotM, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, gotM.IsActive)
		assert.False(t, *gotM.IsActive)
		assert.Contains(t, env.taskNames(), "membership.MembershipCancelledNotification")
	})

	t.Run("cuts over to the scheduled plan change", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, active := env.startActive(t, tier, uuid.New(), "card")
		next := env.createTierForCreator(t, tier.CreatorID, "900")

		scheduled, err := env.svc.Update(ctx, m.ID, next.ID, membership.PeriodMonthly)
		require.NoError(t, err)
		require.Equal(t, membership.StatusScheduledToActivate, scheduled.Status)

		env.clock.Advance(32 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		gotOld, err := env.store.GetSubscription(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusCancelled, gotOld.Status)

		gotNew, err := env.store.GetSubscription(ctx, scheduled.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusActive, gotNew.Status)

		gotM, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, gotM.ActiveSubscriptionID)
		assert.Equal(t, scheduled.ID, *gotM.ActiveSubscriptionID)
		assert.Nil(t, gotM.ScheduledSubscriptionID)
		require.NotNil(t, gotM.IsActive)
		assert.True(t, *gotM.IsActive)
		require.NotNil(t, gotM.TierID)
		assert.Equal(t, next.ID, *gotM.TierID)
	})

	t.Run("leaves an unauthenticated scheduled checkout alone", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, _ := env.startActive(t, tier, uuid.New(), membership.PaymentMethodUPI)
		next := env.createTierForCreator(t, tier.CreatorID, "900")

		// UPI change leaves a created-state row; cancel the running sub so the
		// sweep finalizes it.
		pending, err := env.svc.Update(ctx, m.ID, next.ID, membership.PeriodMonthly)
		require.NoError(t, err)
		require.Equal(t, membership.StatusCreated, pending.Status)
		_, err = env.svc.Cancel(ctx, m.ID)
		require.NoError(t, err)

		env.clock.Advance(32 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusCreated, got.Status, "activation is payment-driven, not time-driven")

		gotM, err := env.store.GetMembership(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, gotM.IsActive)
		assert.False(t, *gotM.IsActive)
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		tier := env.createTier(t, "500")
		m, sub := env.startActive(t, tier, uuid.New(), "card")

		env.clock.Advance(60 * 24 * time.Hour)
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))
		require.NoError(t, env.svc.RefreshMembership(ctx, m.ID))

		got, err := env.store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusHalted, got.Status)
	})
}

func TestRefreshAllMemberships(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	tier := env.createTier(t, "500")

	env.startActive(t, tier, uuid.New(), "card")
	env.startActive(t, tier, uuid.New(), "card")

	// Unconfirmed membership is not swept.
	_, _, err := env.svc.Start(ctx, tier.CreatorID, uuid.New(), tier.ID, membership.PeriodMonthly)
	require.NoError(t, err)

	require.NoError(t, env.svc.RefreshAllMemberships(ctx))

	var refreshTasks int
	for _, task := range env.tasks.Tasks() {
		if task.Name == "membership.RefreshMembershipTask" {
			refreshTasks++
		}
	}
	assert.Equal(t, 2, refreshTasks)
}
