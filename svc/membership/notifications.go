package membership

import "github.com/google/uuid"

// Task payloads emitted by the state machine's side effects. Handlers live
// with the worker wiring; the payload type name doubles as the task name.

// MemberJoinedNotification fans out the new-member email and feed entry.
type MemberJoinedNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// MembershipChangingNotification tells the fan a plan change is scheduled
// for the end of the current cycle.
type MembershipChangingNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// RenewalFailedNotification tells the fan a renewal payment is past due.
type RenewalFailedNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// MembershipRenewedNotification confirms a successful renewal charge.
type MembershipRenewedNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// MembershipHaltedNotification tells both sides the membership lapsed after
// the grace period.
type MembershipHaltedNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// MembershipCancelledNotification confirms a cancellation took effect.
type MembershipCancelledNotification struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// RefreshDiscordMembership grants or revokes the creator's Discord role
// based on the membership's current state. Enqueued after every transition
// that changes access.
type RefreshDiscordMembership struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// RefreshMembershipTask runs drift correction for one membership. The daily
// sweep enqueues one per active membership.
type RefreshMembershipTask struct {
	MembershipID uuid.UUID `json:"membership_id"`
}

// RefreshAllTaskName is the periodic task the scheduler plants daily; its
// handler calls RefreshAllMemberships.
const RefreshAllTaskName = "membership.refresh_all_memberships"
