package webhook_test

import (
	"context"
	"encoding/json"
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
	"github.com/creatorkit/creatorkit/svc/webhook"
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
	members  *membership.MemoryStore
	payments *payment.MemoryStore
	messages *webhook.MemoryStore
	gw       *gateway.Fake
	tasks    *queue.MemoryStorage
	clock    *fakeClock
	msvc     *membership.Service
	psvc     *payment.Service
	svc      *webhook.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		members:  membership.NewMemoryStore(),
		payments: payment.NewMemoryStore(),
		messages: webhook.NewMemoryStore(),
		gw:       gateway.NewFake(),
		tasks:    queue.NewMemoryStorage(),
		clock:    &fakeClock{t: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)},
	}

	enqueuer, err := queue.NewEnqueuer(env.tasks)
	require.NoError(t, err)

	env.msvc = membership.NewService(env.members, env.members, env.gw, enqueuer,
		membership.WithClock(env.clock.Now))
	env.psvc = payment.NewService(env.payments, env.payments, env.gw, enqueuer, env.members, env.msvc,
		payment.WithClock(env.clock.Now))
	env.svc = webhook.NewService(env.messages, env.messages, env.gw, enqueuer,
		env.members, env.msvc, env.psvc)
	return env
}

// startAuthenticated walks a membership to an authenticated subscription: the
// point where a charged webhook can legally activate it.
func (e *testEnv) startAuthenticated(t *testing.T) (*membership.Subscription, *membership.Plan) {
	t.Helper()
	ctx := context.Background()

	tier := &membership.Tier{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		Name:      "Gold",
		Amount:    money.New(decimal.RequireFromString("500"), "INR"),
		CreatedAt: e.clock.Now(),
	}
	require.NoError(t, e.members.CreateTier(ctx, tier))

	_, sub, err := e.msvc.Start(ctx, tier.CreatorID, uuid.New(), tier.ID, membership.PeriodMonthly)
	require.NoError(t, err)
	e.clock.Advance(time.Second)
	require.NoError(t, e.msvc.Authenticate(ctx, sub))

	plan, err := e.members.GetPlan(ctx, sub.PlanID)
	require.NoError(t, err)
	return sub, plan
}

func body(t *testing.T, event string, payload map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	require.NoError(t, err)
	return raw
}

func chargedBody(t *testing.T, subExt, planExt, paymentID string, amountSubUnit int64, currentEnd time.Time) []byte {
	return body(t, "subscription.charged", map[string]any{
		"subscription": map[string]any{"entity": map[string]any{
			"id":          subExt,
			"plan_id":     planExt,
			"status":      "active",
			"current_end": currentEnd.Unix(),
		}},
		"payment": map[string]any{"entity": map[string]any{
			"id":       paymentID,
			"method":   "card",
			"amount":   amountSubUnit,
			"currency": "INR",
		}},
	})
}

// hasTask reports whether a task with the given name was enqueued.
func (e *testEnv) hasTask(name string) bool {
	for _, task := range e.tasks.Tasks() {
		if task.Name == name {
			return true
		}
	}
	return false
}

// receive stores a webhook body with a valid signature and returns the
// message.
func (e *testEnv) receive(t *testing.T, raw []byte, eventID string) *webhook.Message {
	t.Helper()
	m, err := e.svc.Receive(context.Background(), raw, e.gw.SignWebhook(raw), eventID)
	require.NoError(t, err)
	return m
}

func TestReceive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores message and enqueues processing", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		m := env.receive(t, raw, "evt_1")
		assert.Equal(t, "order.paid", m.Event)
		assert.Len(t, env.messages.Messages(), 1)

		var enqueued bool
		for _, task := range env.tasks.Tasks() {
			if task.Name == "webhook.ProcessMessageTask" {
				enqueued = true
			}
		}
		assert.True(t, enqueued)
	})

	t.Run("duplicate event id", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		env.receive(t, raw, "evt_1")
		_, err := env.svc.Receive(ctx, raw, env.gw.SignWebhook(raw), "evt_1")
		require.ErrorIs(t, err, webhook.ErrDuplicateMessage)
		assert.Len(t, env.messages.Messages(), 1)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{})

		_, err := env.svc.Receive(ctx, raw, "forged", "evt_1")
		require.ErrorIs(t, err, gateway.ErrSignatureMismatch)
		assert.Empty(t, env.messages.Messages())
	})
}

func TestProcessSubscriptionCharged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("activates an authenticated subscription", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		sub, plan := env.startAuthenticated(t)

		raw := chargedBody(t, sub.ExternalID, plan.ExternalID, "pay_1", 50000, sub.CycleEndAt)
		m := env.receive(t, raw, "evt_1")
		require.NoError(t, env.svc.Process(ctx, m.ID))

		got, err := env.members.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusActive, got.Status)

		require.Len(t, env.payments.Payments(), 1)
		assert.Equal(t, "pay_1", env.payments.Payments()[0].ExternalID)
		assert.Len(t, env.payments.Payouts(), 1)

		assert.True(t, env.hasTask("stats.RefreshCreatorStatsTask"))
	})

	t.Run("renews only when the cycle end date differs", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		sub, plan := env.startAuthenticated(t)
		require.NoError(t, env.msvc.Activate(ctx, sub))
		firstEnd := sub.CycleEndAt

		// Renewal charge with a new cycle end.
		newEnd := firstEnd.AddDate(0, 1, 0)
		raw := chargedBody(t, sub.ExternalID, plan.ExternalID, "pay_2", 50000, newEnd)
		m := env.receive(t, raw, "evt_2")
		require.NoError(t, env.svc.Process(ctx, m.ID))

		got, err := env.members.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, newEnd.UTC().Truncate(time.Second), got.CycleEndAt.UTC().Truncate(time.Second))

		// A second charge event for the same cycle end must not renew again.
		raw2 := chargedBody(t, sub.ExternalID, plan.ExternalID, "pay_2", 50000, newEnd)
		m2 := env.receive(t, raw2, "evt_3")
		require.NoError(t, env.svc.Process(ctx, m2.ID))

		got2, err := env.members.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, got.CycleStartAt, got2.CycleStartAt)
		assert.Len(t, env.payments.Payments(), 1, "payment deduplicated on gateway payment id")
	})
}

func TestProcessReplaySafety(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	sub, plan := env.startAuthenticated(t)

	raw := chargedBody(t, sub.ExternalID, plan.ExternalID, "pay_1", 50000, sub.CycleEndAt)
	m := env.receive(t, raw, "evt_1")
	require.NoError(t, env.svc.Process(ctx, m.ID))

	// Same event id again: rejected at the door, nothing reprocessed.
	_, err := env.svc.Receive(ctx, raw, env.gw.SignWebhook(raw), "evt_1")
	require.ErrorIs(t, err, webhook.ErrDuplicateMessage)

	// Reprocessing the stored message is a no-op too.
	require.NoError(t, env.svc.Process(ctx, m.ID))
	assert.Len(t, env.payments.Payments(), 1)
	assert.Len(t, env.payments.Payouts(), 1)
}

func TestProcessSubscriptionCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	sub, plan := env.startAuthenticated(t)
	require.NoError(t, env.msvc.Activate(ctx, sub))

	raw := body(t, "subscription.cancelled", map[string]any{
		"subscription": map[string]any{"entity": map[string]any{
			"id":      sub.ExternalID,
			"plan_id": plan.ExternalID,
			"status":  "cancelled",
		}},
	})
	m := env.receive(t, raw, "evt_1")
	require.NoError(t, env.svc.Process(ctx, m.ID))

	got, err := env.members.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusScheduledToCancel, got.Status)
	assert.Empty(t, env.gw.Cancellations, "gateway initiated the cancel; no echo back")
	assert.True(t, env.hasTask("stats.RefreshCreatorStatsTask"), "cancellation refreshes creator stats")

	// Once the cycle lapses, replaying the same logic finalizes it through
	// the drift sweep the handler delegates to.
	env.clock.Advance(32 * 24 * time.Hour)
	require.NoError(t, env.msvc.RefreshMembership(ctx, sub.MembershipID))
	got, err = env.members.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusCancelled, got.Status)
}

func TestProcessSubscriptionPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	sub, plan := env.startAuthenticated(t)
	require.NoError(t, env.msvc.Activate(ctx, sub))

	// The event is only a hint; the local guards decide. Before cycle end it
	// changes nothing, after cycle end it marks the renewal attempt.
	raw := body(t, "subscription.pending", map[string]any{
		"subscription": map[string]any{"entity": map[string]any{
			"id":      sub.ExternalID,
			"plan_id": plan.ExternalID,
			"status":  "pending",
		}},
	})
	m := env.receive(t, raw, "evt_1")
	require.NoError(t, env.svc.Process(ctx, m.ID))

	got, err := env.members.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusActive, got.Status)

	env.clock.Advance(32 * 24 * time.Hour)
	raw2 := body(t, "subscription.pending", map[string]any{
		"subscription": map[string]any{"entity": map[string]any{
			"id":      sub.ExternalID,
			"plan_id": plan.ExternalID,
			"status":  "pending",
		}},
	})
	m2 := env.receive(t, raw2, "evt_2")
	require.NoError(t, env.svc.Process(ctx, m2.ID))

	got, err = env.members.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusPending, got.Status)
	assert.True(t, env.hasTask("stats.RefreshCreatorStatsTask"), "drift events refresh creator stats")
}

func TestProcessOrderPaid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown order is ignored", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		raw := body(t, "order.paid", map[string]any{
			"order":   map[string]any{"entity": map[string]any{"id": "order_unknown"}},
			"payment": map[string]any{"entity": map[string]any{"id": "pay_1"}},
		})
		m := env.receive(t, raw, "evt_1")
		require.NoError(t, env.svc.Process(ctx, m.ID))

		assert.Empty(t, env.payments.Payments())
		assert.True(t, env.messages.Messages()[0].IsProcessed)
	})

	t.Run("records the donation payment", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		d, err := env.psvc.CreateDonation(ctx, uuid.New(), uuid.New(), money.MustParse("150", "INR"), "")
		require.NoError(t, err)
		env.gw.Payments["pay_d"] = &gateway.Payment{
			ID: "pay_d", Status: "captured", Method: "upi",
			AmountSubUnit: 15000, Currency: "INR",
		}

		raw := body(t, "order.paid", map[string]any{
			"order":   map[string]any{"entity": map[string]any{"id": d.OrderExternalID}},
			"payment": map[string]any{"entity": map[string]any{"id": "pay_d"}},
		})
		m := env.receive(t, raw, "evt_1")
		require.NoError(t, env.svc.Process(ctx, m.ID))

		require.Len(t, env.payments.Payments(), 1)
		assert.Len(t, env.payments.Payouts(), 1)
	})
}

func TestProcessUnknownEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	raw := body(t, "payment.downtime.started", map[string]any{})
	m := env.receive(t, raw, "evt_1")
	require.NoError(t, env.svc.Process(ctx, m.ID))
	assert.True(t, env.messages.Messages()[0].IsProcessed)
}
