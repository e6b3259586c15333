package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/creatorkit/creatorkit/pkg/email"
	"github.com/creatorkit/creatorkit/pkg/queue"
	"github.com/creatorkit/creatorkit/svc/membership"
	"github.com/creatorkit/creatorkit/svc/payment"
)

// UserDirectory resolves user ids to deliverable addresses. Backed by the
// account system; tests plug a map.
type UserDirectory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// DiscordSyncer grants or revokes the creator's member role for a fan.
type DiscordSyncer interface {
	SyncMemberRole(ctx context.Context, creatorID, fanID uuid.UUID, active bool) error
}

// Memberships is the read slice of the membership store the notifier needs.
type Memberships interface {
	GetMembership(ctx context.Context, id uuid.UUID) (*membership.Membership, error)
	GetTier(ctx context.Context, id uuid.UUID) (*membership.Tier, error)
}

// Donations is the read slice of the payment store the notifier needs.
type Donations interface {
	GetDonation(ctx context.Context, id uuid.UUID) (*payment.Donation, error)
}

// Notifier delivers membership and donation notifications.
type Notifier struct {
	memberships Memberships
	donations   Donations
	users       UserDirectory
	emails      email.Sender
	discord     DiscordSyncer
	log         *slog.Logger
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Notifier) { n.log = log }
}

// WithDiscordSyncer sets the Discord role syncer.
func WithDiscordSyncer(d DiscordSyncer) Option {
	return func(n *Notifier) { n.discord = d }
}

// NewNotifier creates a Notifier. Discord sync defaults to a no-op.
func NewNotifier(memberships Memberships, donations Donations, users UserDirectory, emails email.Sender, opts ...Option) *Notifier {
	n := &Notifier{
		memberships: memberships,
		donations:   donations,
		users:       users,
		emails:      emails,
		discord:     NoopDiscordSyncer{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Handlers returns the queue handlers for every payload the notifier serves.
// The worker registers them all.
func (n *Notifier) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(n.MemberJoined),
		queue.NewTaskHandler(n.MembershipChanging),
		queue.NewTaskHandler(n.RenewalFailed),
		queue.NewTaskHandler(n.MembershipRenewed),
		queue.NewTaskHandler(n.MembershipHalted),
		queue.NewTaskHandler(n.MembershipCancelled),
		queue.NewTaskHandler(n.RefreshDiscord),
		queue.NewTaskHandler(n.DonationReceived),
	}
}

// MemberJoined welcomes the fan and tells the creator about the new member.
func (n *Notifier) MemberJoined(ctx context.Context, p membership.MemberJoinedNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	if err := n.sendTo(ctx, m.FanID, email.Message{
		Subject:  fmt.Sprintf("You joined %s", tierName),
		BodyHTML: fmt.Sprintf("<p>Welcome aboard! Your membership on the <b>%s</b> tier is active.</p>", tierName),
		Tag:      "member-joined",
	}); err != nil {
		return err
	}
	return n.sendTo(ctx, m.CreatorID, email.Message{
		Subject:  "You have a new member",
		BodyHTML: fmt.Sprintf("<p>A fan just joined your <b>%s</b> tier.</p>", tierName),
		Tag:      "member-joined",
	})
}

// MembershipChanging tells the fan their plan change takes effect at the end
// of the current cycle.
func (n *Notifier) MembershipChanging(ctx context.Context, p membership.MembershipChangingNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	return n.sendTo(ctx, m.FanID, email.Message{
		Subject:  "Your membership change is scheduled",
		BodyHTML: fmt.Sprintf("<p>Your switch to the <b>%s</b> tier takes effect when the current billing cycle ends.</p>", tierName),
		Tag:      "membership-changing",
	})
}

// RenewalFailed warns the fan a renewal charge is past due.
func (n *Notifier) RenewalFailed(ctx context.Context, p membership.RenewalFailedNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	return n.sendTo(ctx, m.FanID, email.Message{
		Subject:  "We could not renew your membership",
		BodyHTML: fmt.Sprintf("<p>The renewal charge for your <b>%s</b> membership did not go through. Please update your payment method to keep your access.</p>", tierName),
		Tag:      "renewal-failed",
	})
}

// MembershipRenewed confirms a successful renewal charge.
func (n *Notifier) MembershipRenewed(ctx context.Context, p membership.MembershipRenewedNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	return n.sendTo(ctx, m.FanID, email.Message{
		Subject:  "Your membership renewed",
		BodyHTML: fmt.Sprintf("<p>Your <b>%s</b> membership renewed for another cycle. Thank you for your support!</p>", tierName),
		Tag:      "membership-renewed",
	})
}

// MembershipHalted tells both sides the membership lapsed.
func (n *Notifier) MembershipHalted(ctx context.Context, p membership.MembershipHaltedNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	if err := n.sendTo(ctx, m.FanID, email.Message{
		Subject:  "Your membership has lapsed",
		BodyHTML: fmt.Sprintf("<p>Your <b>%s</b> membership lapsed because the renewal payment never arrived. Rejoin any time.</p>", tierName),
		Tag:      "membership-halted",
	}); err != nil {
		return err
	}
	return n.sendTo(ctx, m.CreatorID, email.Message{
		Subject:  "A membership has lapsed",
		BodyHTML: fmt.Sprintf("<p>A member on your <b>%s</b> tier lapsed after the payment grace period.</p>", tierName),
		Tag:      "membership-halted",
	})
}

// MembershipCancelled confirms the cancellation took effect.
func (n *Notifier) MembershipCancelled(ctx context.Context, p membership.MembershipCancelledNotification) error {
	m, tierName, err := n.loadMembership(ctx, p.MembershipID)
	if err != nil {
		return err
	}
	return n.sendTo(ctx, m.FanID, email.Message{
		Subject:  "Your membership is cancelled",
		BodyHTML: fmt.Sprintf("<p>Your <b>%s</b> membership has ended. You are welcome back whenever you like.</p>", tierName),
		Tag:      "membership-cancelled",
	})
}

// RefreshDiscord re-syncs the fan's Discord role with the membership's
// current access state.
func (n *Notifier) RefreshDiscord(ctx context.Context, p membership.RefreshDiscordMembership) error {
	m, err := n.memberships.GetMembership(ctx, p.MembershipID)
	if err != nil {
		return fmt.Errorf("load membership %s: %w", p.MembershipID, err)
	}
	active := m.IsActive != nil && *m.IsActive
	return n.discord.SyncMemberRole(ctx, m.CreatorID, m.FanID, active)
}

// DonationReceived tells the creator about a captured donation.
func (n *Notifier) DonationReceived(ctx context.Context, p payment.DonationReceivedNotification) error {
	d, err := n.donations.GetDonation(ctx, p.DonationID)
	if err != nil {
		return fmt.Errorf("load donation %s: %w", p.DonationID, err)
	}
	body := fmt.Sprintf("<p>You received a donation of <b>%s</b>.</p>", d.Amount.String())
	if d.Message != "" {
		body += fmt.Sprintf("<p>They wrote: %q</p>", d.Message)
	}
	return n.sendTo(ctx, d.CreatorID, email.Message{
		Subject:  "You received a donation",
		BodyHTML: body,
		Tag:      "donation-received",
	})
}

func (n *Notifier) loadMembership(ctx context.Context, id uuid.UUID) (*membership.Membership, string, error) {
	m, err := n.memberships.GetMembership(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("load membership %s: %w", id, err)
	}
	tierName := "membership"
	if m.TierID != nil {
		tier, err := n.memberships.GetTier(ctx, *m.TierID)
		if err != nil {
			return nil, "", fmt.Errorf("load tier %s: %w", *m.TierID, err)
		}
		tierName = tier.Name
	}
	return m, tierName, nil
}

func (n *Notifier) sendTo(ctx context.Context, userID uuid.UUID, msg email.Message) error {
	addr, err := n.users.EmailFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve address for %s: %w", userID, err)
	}
	msg.To = addr
	if err := n.emails.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", msg.Tag, err)
	}
	return nil
}
