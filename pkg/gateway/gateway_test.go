package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/gateway"
)

func TestFakeSignatures(t *testing.T) {
	t.Parallel()

	fake := gateway.NewFake()

	t.Run("order signature round trip", func(t *testing.T) {
		t.Parallel()

		sig := fake.SignOrder("order_1", "pay_1")
		require.NoError(t, fake.VerifyOrderSignature("order_1", "pay_1", sig))
		assert.ErrorIs(t, fake.VerifyOrderSignature("order_1", "pay_2", sig), gateway.ErrSignatureMismatch)
	})

	t.Run("subscription signature round trip", func(t *testing.T) {
		t.Parallel()

		sig := fake.SignSubscription("sub_1", "pay_1")
		require.NoError(t, fake.VerifySubscriptionSignature("sub_1", "pay_1", sig))
		assert.ErrorIs(t, fake.VerifySubscriptionSignature("sub_2", "pay_1", sig), gateway.ErrSignatureMismatch)
	})

	t.Run("webhook signature round trip", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"event":"subscription.charged"}`)
		sig := fake.SignWebhook(body)
		require.NoError(t, fake.VerifyWebhookSignature(body, sig))
		assert.ErrorIs(t, fake.VerifyWebhookSignature([]byte(`{}`), sig), gateway.ErrSignatureMismatch)
	})
}

func TestFakeObjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := gateway.NewFake()

	plan, err := fake.CreatePlan(ctx, gateway.PlanRequest{Name: "Gold", Period: "monthly", Interval: 1, AmountSubUnit: 10000, Currency: "INR"})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)

	sub, err := fake.CreateSubscription(ctx, gateway.SubscriptionRequest{PlanID: plan.ID, TotalCount: 12})
	require.NoError(t, err)
	assert.NotEqual(t, plan.ID, sub.ID)

	_, err = fake.FetchPayment(ctx, "pay_missing")
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	p, err := fake.CapturePayment(ctx, "pay_1", 10000, "INR")
	require.NoError(t, err)
	assert.Equal(t, "captured", p.Status)
	assert.Equal(t, int64(10000), p.AmountSubUnit)
}
