// Package events publishes domain events for downstream consumers such as the
// email worker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionCreated   = "subscription.created"
	SubscriptionActivated = "subscription.activated"
	SubscriptionCancelled = "subscription.cancelled"
	SubscriptionsSwept    = "subscription.swept"
	WalletCredited        = "wallet.credited"
	WalletDrift           = "wallet.drift_detected"
	PurchaseCompleted     = "purchase.completed"
	PayoutRequested       = "payout.requested"
	PayoutApproved        = "payout.approved"
	PayoutRejected        = "payout.rejected"
	CreatorApproved       = "creator.approved"
	CreatorRejected       = "creator.rejected"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func New(eventType string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
