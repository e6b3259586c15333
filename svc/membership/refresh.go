package membership

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// RefreshMembership is the drift correction for one membership: the single
// place where silence from the gateway turns into a state transition. It
// row-locks the membership, then tries halt, cancel (with cutover to an
// eligible scheduled subscription), and renewal start, in that order. Safe
// to call repeatedly; when no guard holds it is a no-op.
func (s *Service) RefreshMembership(ctx context.Context, membershipID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMembershipForUpdate(ctx, membershipID)
		if err != nil {
			return err
		}
		if m.IsActive == nil || !*m.IsActive || m.ActiveSubscriptionID == nil {
			return nil
		}

		active, err := s.store.GetSubscriptionForUpdate(ctx, *m.ActiveSubscriptionID)
		if err != nil {
			return err
		}

		switch {
		case s.CanHalt(ctx, active):
			s.log.InfoContext(ctx, "refresh_membership_halt",
				slog.String("membership_id", m.ID.String()),
				slog.String("subscription_id", active.ID.String()))
			return s.Halt(ctx, active)

		case s.CanCancelSubscription(ctx, active):
			s.log.InfoContext(ctx, "refresh_membership_cancel",
				slog.String("membership_id", m.ID.String()),
				slog.String("subscription_id", active.ID.String()))
			if err := s.CancelSubscription(ctx, active); err != nil {
				return err
			}

			// Cutover: a scheduled plan change activates the moment the old
			// subscription ends — but only if its own payment path completed.
			// A dangling unauthenticated scheduled subscription stays put;
			// expiry is time-driven, activation is payment-driven.
			if m.ScheduledSubscriptionID != nil {
				scheduled, err := s.store.GetSubscriptionForUpdate(ctx, *m.ScheduledSubscriptionID)
				if err != nil {
					return err
				}
				if s.CanActivate(ctx, scheduled) {
					return s.Activate(ctx, scheduled)
				}
			}
			return nil

		case s.CanStartRenewal(ctx, active):
			s.log.InfoContext(ctx, "refresh_membership_start_renewal",
				slog.String("membership_id", m.ID.String()),
				slog.String("subscription_id", active.ID.String()))
			return s.StartRenewal(ctx, active)
		}

		return nil
	})
}

// RefreshAllMemberships enqueues a drift-correction task per active
// membership. Registered with the scheduler as the daily sweep.
func (s *Service) RefreshAllMemberships(ctx context.Context) error {
	ids, err := s.store.ListActiveMembershipIDs(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := s.tasks.Enqueue(ctx, RefreshMembershipTask{MembershipID: id}); err != nil {
			errs = append(errs, err)
		}
	}

	s.log.InfoContext(ctx, "refresh_all_memberships_enqueued",
		slog.Int("count", len(ids)),
		slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}
