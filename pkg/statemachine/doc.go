// Package statemachine implements a table-driven finite state machine for
// entities whose state lives in the database rather than in memory.
//
// A Machine holds only the transition table; the current state is passed in on
// every call. This makes a single Machine safe to share across goroutines and
// across every row of an entity table:
//
//	m := statemachine.New(
//		statemachine.WithTransition(Created, Authenticated, EventAuthenticate),
//		statemachine.WithTransition(Authenticated, Active, EventActivate,
//			statemachine.WithGuard(cycleStarted)),
//	)
//
//	next, err := m.Fire(ctx, sub.Status, EventActivate, sub)
//
// Fire returns the target state without mutating anything; the caller persists
// it. CanFire mirrors Fire's guard evaluation without running actions, which is
// how callers ask "would this transition be legal right now" before choosing a
// branch.
package statemachine
