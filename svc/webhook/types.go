package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is a durable record of one received gateway webhook, deduplicated
// on the gateway's event id.
type Message struct {
	ID          uuid.UUID
	ExternalID  string // gateway event id
	Event       string
	Payload     json.RawMessage
	IsProcessed bool
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// event is the gateway's webhook body shape: an event name plus nested
// entity wrappers per entity kind.
type event struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity orderEntity `json:"entity"`
		} `json:"order"`
		Transfer struct {
			Entity transferEntity `json:"entity"`
		} `json:"transfer"`
		Settlement struct {
			Entity settlementEntity `json:"entity"`
		} `json:"settlement"`
	} `json:"payload"`
}

type subscriptionEntity struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	Status     string `json:"status"`
	CurrentEnd int64  `json:"current_end"` // unix seconds
}

type paymentEntity struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	Method        string `json:"method"`
	AmountSubUnit int64  `json:"amount"`
	Currency      string `json:"currency"`
}

type orderEntity struct {
	ID string `json:"id"`
}

type transferEntity struct {
	ID string `json:"id"`
}

type settlementEntity struct {
	ID string `json:"id"`
}
