package membership

import (
	"context"

	"github.com/creatorkit/creatorkit/pkg/statemachine"
)

// Events of the subscription state machine.
const (
	eventAuthenticate       statemachine.StringEvent = "authenticate"
	eventActivate           statemachine.StringEvent = "activate"
	eventScheduleToActivate statemachine.StringEvent = "schedule_to_activate"
	eventScheduleToCancel   statemachine.StringEvent = "schedule_to_cancel"
	eventCancel             statemachine.StringEvent = "cancel"
	eventStartRenewal       statemachine.StringEvent = "start_renewal"
	eventRenew              statemachine.StringEvent = "renew"
	eventHalt               statemachine.StringEvent = "halt"
)

func state(s SubscriptionStatus) statemachine.State {
	return statemachine.StringState(s)
}

func states(ss ...SubscriptionStatus) []statemachine.State {
	out := make([]statemachine.State, len(ss))
	for i, s := range ss {
		out[i] = state(s)
	}
	return out
}

// newSubscriptionFSM builds the transition table. Guards compare cycle
// timestamps against the service clock; data is always *Subscription.
// Actions stay out of the table — the service runs side effects after the
// status write so the table remains a pure legality check.
func (s *Service) newSubscriptionFSM() *statemachine.Machine {
	sub := func(data any) *Subscription {
		v, _ := data.(*Subscription)
		return v
	}

	cycleStarted := func(ctx context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v := sub(data)
		return v != nil && v.CycleStartAt.Before(s.now())
	}
	cycleEnded := func(ctx context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v := sub(data)
		return v != nil && v.CycleEndAt.Before(s.now())
	}
	graceElapsed := func(ctx context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v := sub(data)
		return v != nil && v.CycleEndAt.AddDate(0, 0, s.graceDays).Before(s.now())
	}

	return statemachine.New(
		statemachine.WithTransition(
			state(StatusCreated), state(StatusAuthenticated), eventAuthenticate),

		statemachine.WithTransitionFrom(
			states(StatusAuthenticated, StatusScheduledToActivate),
			state(StatusActive), eventActivate,
			statemachine.WithGuard(cycleStarted)),

		statemachine.WithTransitionFrom(
			states(StatusAuthenticated, StatusPending, StatusHalted),
			state(StatusScheduledToActivate), eventScheduleToActivate),

		statemachine.WithTransitionFrom(
			states(StatusCreated, StatusAuthenticated, StatusActive, StatusPending, StatusScheduledToActivate, StatusPaused),
			state(StatusScheduledToCancel), eventScheduleToCancel),

		statemachine.WithTransition(
			state(StatusScheduledToCancel), state(StatusCancelled), eventCancel,
			statemachine.WithGuard(cycleEnded)),

		statemachine.WithTransitionFrom(
			states(StatusActive, StatusPending),
			state(StatusPending), eventStartRenewal,
			statemachine.WithGuard(cycleEnded)),

		statemachine.WithTransitionFrom(
			states(StatusPending, StatusPaused, StatusHalted, StatusActive),
			state(StatusActive), eventRenew),

		statemachine.WithTransitionFrom(
			states(StatusPending, StatusActive),
			state(StatusHalted), eventHalt,
			statemachine.WithGuard(graceElapsed)),
	)
}
