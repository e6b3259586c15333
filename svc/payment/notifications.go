package payment

import "github.com/google/uuid"

// DonationReceivedNotification tells the creator a tip arrived.
type DonationReceivedNotification struct {
	DonationID uuid.UUID `json:"donation_id"`
}
