package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorkit/creatorkit/pkg/statemachine"
)

// Subscription transitions. Every method here assumes the caller already
// holds the subscription's row lock inside a Transactor transaction; the
// confirmation endpoint, the webhook processor and the drift sweep all reach
// the same code through that lock, which is the system's one concurrency
// guarantee.

// Authenticate moves a created subscription to authenticated once the
// gateway confirms the fan authorized the payment method. If the membership
// already runs a different subscription, that one is scheduled to cancel —
// replacing-subscription semantics — but only when that transition is
// currently legal.
func (s *Service) Authenticate(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventAuthenticate); err != nil {
		return err
	}
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	m, err := s.store.GetMembershipForUpdate(ctx, sub.MembershipID)
	if err != nil {
		return err
	}
	if m.ActiveSubscriptionID != nil && *m.ActiveSubscriptionID != sub.ID {
		current, err := s.store.GetSubscriptionForUpdate(ctx, *m.ActiveSubscriptionID)
		if err != nil {
			return err
		}
		if s.fsm.CanFire(ctx, state(current.Status), eventScheduleToCancel, current) {
			if err := s.scheduleToCancel(ctx, current, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// Activate makes the subscription the membership's current one. Guarded by
// cycle start; activating before the cycle begins is rejected.
func (s *Service) Activate(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventActivate); err != nil {
		return err
	}
	sub.IsActive = true
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := s.adopt(ctx, sub); err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, MemberJoinedNotification{MembershipID: sub.MembershipID}); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, RefreshDiscordMembership{MembershipID: sub.MembershipID})
}

// CanActivate mirrors Activate's guards without mutating anything.
func (s *Service) CanActivate(ctx context.Context, sub *Subscription) bool {
	return s.fsm.CanFire(ctx, state(sub.Status), eventActivate, sub)
}

// ScheduleToActivate parks an authenticated renewal or plan change until the
// current cycle ends.
func (s *Service) ScheduleToActivate(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventScheduleToActivate); err != nil {
		return err
	}
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, MembershipChangingNotification{MembershipID: sub.MembershipID})
}

// ScheduleToCancel marks the subscription to cancel at cycle end, issuing
// the gateway cancel unless nothing remains to cancel remotely.
func (s *Service) ScheduleToCancel(ctx context.Context, sub *Subscription) error {
	return s.scheduleToCancel(ctx, sub, false)
}

func (s *Service) scheduleToCancel(ctx context.Context, sub *Subscription, gatewayAlreadyNotified bool) error {
	if err := s.fire(ctx, sub, eventScheduleToCancel); err != nil {
		return err
	}

	// Giveaways have no gateway object, and an already-ended cycle needs no
	// remote cancel; both cases make this a pure local transition.
	if !gatewayAlreadyNotified && !sub.IsGiveaway() && !sub.CycleEndAt.Before(s.now()) {
		if err := s.gw.CancelSubscription(ctx, sub.ExternalID, true); err != nil {
			return fmt.Errorf("gateway cancel: %w", err)
		}
	}
	return s.store.UpdateSubscription(ctx, sub)
}

// AcknowledgeCancellation records a cancellation the gateway initiated: the
// subscription moves to scheduled-to-cancel without a remote cancel call,
// since the gateway already knows. Illegal source states are a no-op — the
// row may already be on the cancellation path.
func (s *Service) AcknowledgeCancellation(ctx context.Context, sub *Subscription) error {
	if !s.fsm.CanFire(ctx, state(sub.Status), eventScheduleToCancel, sub) {
		return nil
	}
	return s.scheduleToCancel(ctx, sub, true)
}

// CancelSubscription finalizes a scheduled cancellation once the cycle has
// ended, cascading deactivation to the membership.
func (s *Service) CancelSubscription(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventCancel); err != nil {
		return err
	}
	sub.IsActive = false
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := s.deactivateMembership(ctx, sub); err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, MembershipCancelledNotification{MembershipID: sub.MembershipID}); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, RefreshDiscordMembership{MembershipID: sub.MembershipID})
}

// CanCancelSubscription mirrors CancelSubscription's guards.
func (s *Service) CanCancelSubscription(ctx context.Context, sub *Subscription) bool {
	return s.fsm.CanFire(ctx, state(sub.Status), eventCancel, sub)
}

// StartRenewal marks a subscription whose cycle elapsed as attempting a
// past-due renewal and tells the fan about the payment issue.
func (s *Service) StartRenewal(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventStartRenewal); err != nil {
		return err
	}
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, RenewalFailedNotification{MembershipID: sub.MembershipID})
}

// CanStartRenewal mirrors StartRenewal's guards.
func (s *Service) CanStartRenewal(ctx context.Context, sub *Subscription) bool {
	return s.fsm.CanFire(ctx, state(sub.Status), eventStartRenewal, sub)
}

// Renew re-activates the subscription with an updated cycle end after a
// successful charge and re-adopts it into the membership.
func (s *Service) Renew(ctx context.Context, sub *Subscription, newCycleEnd time.Time) error {
	if err := s.fire(ctx, sub, eventRenew); err != nil {
		return err
	}
	sub.CycleStartAt = sub.CycleEndAt
	sub.CycleEndAt = newCycleEnd
	sub.IsActive = true
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := s.adopt(ctx, sub); err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, MembershipRenewedNotification{MembershipID: sub.MembershipID}); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, RefreshDiscordMembership{MembershipID: sub.MembershipID})
}

// CanRenew mirrors Renew's source-state check.
func (s *Service) CanRenew(ctx context.Context, sub *Subscription) bool {
	return s.fsm.CanFire(ctx, state(sub.Status), eventRenew, sub)
}

// Halt gives up on a subscription whose renewal stayed unpaid past the
// grace period.
func (s *Service) Halt(ctx context.Context, sub *Subscription) error {
	if err := s.fire(ctx, sub, eventHalt); err != nil {
		return err
	}
	sub.IsActive = false
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := s.deactivateMembership(ctx, sub); err != nil {
		return err
	}

	if err := s.tasks.Enqueue(ctx, MembershipHaltedNotification{MembershipID: sub.MembershipID}); err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, RefreshDiscordMembership{MembershipID: sub.MembershipID})
}

// CanHalt mirrors Halt's guards.
func (s *Service) CanHalt(ctx context.Context, sub *Subscription) bool {
	return s.fsm.CanFire(ctx, state(sub.Status), eventHalt, sub)
}

// fire runs the transition table and writes the target status back onto the
// entity; persistence stays with the caller.
func (s *Service) fire(ctx context.Context, sub *Subscription, event statemachine.StringEvent) error {
	target, err := s.fsm.Fire(ctx, state(sub.Status), event, sub)
	if err != nil {
		return err
	}
	sub.Status = SubscriptionStatus(target.Name())
	sub.UpdatedAt = s.now()
	return nil
}

// adopt makes sub the membership's active subscription, clears the
// scheduled slot when it points at sub, and derives the tier.
func (s *Service) adopt(ctx context.Context, sub *Subscription) error {
	m, err := s.store.GetMembershipForUpdate(ctx, sub.MembershipID)
	if err != nil {
		return err
	}

	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	m.ActiveSubscriptionID = &sub.ID
	if m.ScheduledSubscriptionID != nil && *m.ScheduledSubscriptionID == sub.ID {
		m.ScheduledSubscriptionID = nil
	}
	m.TierID = &plan.TierID
	active := true
	m.IsActive = &active
	m.UpdatedAt = s.now()
	return s.store.UpdateMembership(ctx, m)
}

func (s *Service) deactivateMembership(ctx context.Context, sub *Subscription) error {
	m, err := s.store.GetMembershipForUpdate(ctx, sub.MembershipID)
	if err != nil {
		return err
	}
	inactive := false
	m.IsActive = &inactive
	m.UpdatedAt = s.now()
	return s.store.UpdateMembership(ctx, m)
}
