package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/square"
	"creatorpay/internal/store"

	"github.com/jmoiron/sqlx"
)

const (
	EventInvoicePaymentMade  = "invoice.payment_made"
	EventSubscriptionUpdated = "subscription.updated"

	// paidPeriod is longer than a 30 day cycle to absorb processor
	// scheduling jitter. Expiry is measured from the time the payment is
	// settled, not extended from the previous expires_at.
	paidPeriod = 32 * 24 * time.Hour
)

type WebhookSubscriptionStore interface {
	GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error)
	Activate(ctx context.Context, tx store.Execer, id string, paidAt, expiresAt time.Time) error
	SetStatus(ctx context.Context, id, status string) error
}

type Crediter interface {
	Credit(ctx context.Context, req CreditRequest) (CreditResult, error)
}

type WebhookConfig struct {
	SignatureKey    string
	NotificationURL string
	Production      bool
}

type WebhookService struct {
	cfg           WebhookConfig
	subscriptions WebhookSubscriptionStore
	wallet        Crediter
	publisher     EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

func NewWebhookService(cfg WebhookConfig, subscriptions WebhookSubscriptionStore, wallet Crediter, publisher EventPublisher, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		cfg:           cfg,
		subscriptions: subscriptions,
		wallet:        wallet,
		publisher:     publisher,
		logger:        orDiscard(logger),
		now:           time.Now,
	}
}

type webhookEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string          `json:"id"`
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type invoiceObject struct {
	Invoice struct {
		ID              string `json:"id"`
		SubscriptionID  string `json:"subscription_id"`
		PaymentRequests []struct {
			ComputedAmount  *square.Money `json:"computed_amount_money"`
			CompletedAmount *square.Money `json:"total_completed_amount_money"`
		} `json:"payment_requests"`
	} `json:"invoice"`
}

type subscriptionObject struct {
	Subscription struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"subscription"`
}

// Handle verifies and applies one processor notification. Events that do not
// match a local subscription, and unknown event types, are accepted and
// ignored.
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string) error {
	if err := s.verify(body, signature); err != nil {
		return err
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	logger := s.logger.With("event_id", event.EventID, "event_type", event.Type)

	switch event.Type {
	case EventInvoicePaymentMade:
		var obj invoiceObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			return fmt.Errorf("%w: invoice: %v", ErrInvalidPayload, err)
		}
		return s.handleInvoicePaid(ctx, logger, event, obj)
	case EventSubscriptionUpdated:
		var obj subscriptionObject
		if err := json.Unmarshal(event.Data.Object, &obj); err != nil {
			return fmt.Errorf("%w: subscription: %v", ErrInvalidPayload, err)
		}
		return s.handleSubscriptionUpdated(ctx, logger, obj)
	default:
		logger.Info("webhook event ignored")
		return nil
	}
}

func (s *WebhookService) verify(body []byte, signature string) error {
	if s.cfg.SignatureKey == "" {
		if s.cfg.Production {
			s.logger.Error("webhook rejected: signature key not configured")
			return ErrWebhookNotConfigured
		}
		s.logger.Warn("webhook signature not verified: no signature key configured")
		return nil
	}
	if !square.VerifySignature(s.cfg.SignatureKey, s.cfg.NotificationURL, body, signature) {
		s.logger.Warn("webhook signature mismatch", "security", true)
		return ErrInvalidSignature
	}
	return nil
}

func (s *WebhookService) handleInvoicePaid(ctx context.Context, logger *slog.Logger, event webhookEvent, obj invoiceObject) error {
	invoice := obj.Invoice
	if invoice.ID == "" {
		invoice.ID = event.Data.ID
	}
	if invoice.SubscriptionID == "" || invoice.ID == "" {
		logger.Info("invoice without subscription ignored")
		return nil
	}
	sub, err := s.subscriptions.GetByExternalID(ctx, invoice.SubscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("invoice for unknown subscription ignored", "external_subscription_id", invoice.SubscriptionID)
			return nil
		}
		return err
	}

	var amount int64
	for _, req := range invoice.PaymentRequests {
		switch {
		case req.CompletedAmount != nil && req.CompletedAmount.Amount > 0:
			amount += req.CompletedAmount.Amount
		case req.ComputedAmount != nil:
			amount += req.ComputedAmount.Amount
		}
	}
	if amount <= 0 {
		logger.Warn("paid invoice without amount ignored", "invoice_id", invoice.ID)
		return nil
	}

	paidAt := s.now().UTC()
	expiresAt := paidAt.Add(paidPeriod)
	res, err := s.wallet.Credit(ctx, CreditRequest{
		AccountID:          sub.CreatorID,
		AmountMinor:        amount,
		SourceID:           invoice.ID,
		Description:        "subscription payment: " + sub.TierName,
		ApplyPlatformSplit: true,
		Metadata: map[string]any{
			"subscription_id":          sub.ID,
			"external_subscription_id": sub.ExternalID,
			"fan_id":                   sub.FanID,
			"event_id":                 event.EventID,
		},
		Finalize: func(tx *sqlx.Tx) error {
			return s.subscriptions.Activate(ctx, tx, sub.ID, paidAt, expiresAt)
		},
	})
	if err != nil {
		return fmt.Errorf("credit invoice %s: %w", invoice.ID, err)
	}
	if res.Duplicate {
		logger.Info("invoice already settled", "invoice_id", invoice.ID)
		return nil
	}
	logger.Info("subscription payment settled",
		"subscription_id", sub.ID,
		"invoice_id", invoice.ID,
		"amount", amount,
		"expires_at", expiresAt,
	)
	publish(ctx, s.publisher, logger, events.SubscriptionActivated, map[string]any{
		"subscription_id": sub.ID,
		"fan_id":          sub.FanID,
		"creator_id":      sub.CreatorID,
		"invoice_id":      invoice.ID,
		"amount":          amount,
		"expires_at":      expiresAt,
	})
	return nil
}

func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, logger *slog.Logger, obj subscriptionObject) error {
	externalID := obj.Subscription.ID
	if externalID == "" {
		return nil
	}
	var status string
	switch obj.Subscription.Status {
	case square.StatusCanceled:
		status = models.SubscriptionCancelled
	case square.StatusActive:
		status = models.SubscriptionActive
	default:
		logger.Info("subscription status ignored", "status", obj.Subscription.Status)
		return nil
	}

	sub, err := s.subscriptions.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("update for unknown subscription ignored", "external_subscription_id", externalID)
			return nil
		}
		return err
	}
	if sub.Status == status {
		return nil
	}
	// Only a settled invoice grants paid time. ACTIVE may restore a
	// cancelled subscription that still has paid time left, nothing else.
	if status == models.SubscriptionActive && !canReactivate(sub, s.now().UTC()) {
		logger.Info("subscription activation ignored until payment settles",
			"subscription_id", sub.ID, "status", sub.Status)
		return nil
	}
	if err := s.subscriptions.SetStatus(ctx, sub.ID, status); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	logger.Info("subscription status updated", "subscription_id", sub.ID, "from", sub.Status, "to", status)
	if status == models.SubscriptionCancelled {
		publish(ctx, s.publisher, logger, events.SubscriptionCancelled, map[string]any{
			"subscription_id": sub.ID,
			"fan_id":          sub.FanID,
			"creator_id":      sub.CreatorID,
			"expires_at":      sub.ExpiresAt,
		})
	}
	return nil
}

func canReactivate(sub models.Subscription, now time.Time) bool {
	return sub.Status == models.SubscriptionCancelled && sub.ExpiresAt != nil && sub.ExpiresAt.After(now)
}
