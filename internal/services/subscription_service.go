package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/square"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// priceTolerance is the largest accepted gap between the client's price and
// the stored tier price.
var priceTolerance = decimal.RequireFromString("0.01")

const expiringWindow = 3 * 24 * time.Hour

type TierLookup interface {
	GetByCreatorAndName(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error)
	SetPlanID(ctx context.Context, tierID, planID string) error
}

type CustomerAccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	SetPaymentCustomerID(ctx context.Context, accountID, customerID string) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error)
	ListByFan(ctx context.Context, fanID string) ([]models.Subscription, error)
	MarkCancelRequested(ctx context.Context, id string, at time.Time) error
	MarkExpiring(ctx context.Context, now, cutoff time.Time) (int64, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

type BillingGateway interface {
	CreateCustomer(ctx context.Context, in square.CustomerInput) (string, error)
	CreateCard(ctx context.Context, in square.CardInput) (string, error)
	CreateSubscription(ctx context.Context, in square.SubscriptionInput, idempotencyKey string) (string, string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (string, error)
}

type PlanResolver interface {
	GetOrCreatePlan(ctx context.Context, creatorID, tierName string, price decimal.Decimal) (string, error)
}

type SubscriptionService struct {
	tiers         TierLookup
	accounts      CustomerAccountStore
	subscriptions SubscriptionStore
	gateway       BillingGateway
	plans         PlanResolver
	publisher     EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

func NewSubscriptionService(tiers TierLookup, accounts CustomerAccountStore, subscriptions SubscriptionStore, gateway BillingGateway, plans PlanResolver, publisher EventPublisher, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		tiers:         tiers,
		accounts:      accounts,
		subscriptions: subscriptions,
		gateway:       gateway,
		plans:         plans,
		publisher:     publisher,
		logger:        orDiscard(logger),
		now:           time.Now,
	}
}

type SubscribeRequest struct {
	FanID         string
	CreatorID     string
	TierName      string
	ProposedPrice decimal.Decimal
	SourceID      string
}

type SubscribeResult struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
}

// Subscribe starts a recurring subscription for a fan. Funds are credited
// later, when the processor reports the first paid invoice.
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (SubscribeResult, error) {
	if req.FanID == "" || req.CreatorID == "" || strings.TrimSpace(req.TierName) == "" || strings.TrimSpace(req.SourceID) == "" {
		return SubscribeResult{}, ErrInvalidRequest
	}
	if req.FanID == req.CreatorID {
		return SubscribeResult{}, ErrSelfSubscription
	}

	tier, err := s.tiers.GetByCreatorAndName(ctx, req.CreatorID, req.TierName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubscribeResult{}, ErrTierNotFound
		}
		return SubscribeResult{}, err
	}
	if tier.Price.Sub(req.ProposedPrice).Abs().GreaterThan(priceTolerance) {
		s.logger.Warn("subscription price mismatch",
			"fan_id", req.FanID,
			"tier_id", tier.ID,
			"tier_price", tier.Price.String(),
			"proposed_price", req.ProposedPrice.String(),
		)
		return SubscribeResult{}, ErrPriceMismatch
	}

	fan, err := s.accounts.GetByID(ctx, req.FanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubscribeResult{}, ErrAccountNotFound
		}
		return SubscribeResult{}, err
	}
	customerID, err := s.resolveCustomer(ctx, fan)
	if err != nil {
		return SubscribeResult{}, err
	}

	cardID, err := s.gateway.CreateCard(ctx, square.CardInput{SourceID: req.SourceID, CustomerID: customerID})
	if err != nil {
		return SubscribeResult{}, upstreamError("create card", err)
	}

	planID, err := s.resolvePlan(ctx, tier)
	if err != nil {
		return SubscribeResult{}, err
	}

	externalID, status, err := s.gateway.CreateSubscription(ctx, square.SubscriptionInput{
		CustomerID:      customerID,
		CardID:          cardID,
		PlanVariationID: planID,
	}, uuid.NewString())
	if err != nil {
		return SubscribeResult{}, upstreamError("create subscription", err)
	}

	sub := models.Subscription{
		ID:         uuid.NewString(),
		FanID:      req.FanID,
		CreatorID:  req.CreatorID,
		TierID:     tier.ID,
		TierName:   tier.Name,
		ExternalID: externalID,
		Status:     models.SubscriptionPending,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		s.logger.Error("subscription created upstream but not recorded",
			"external_subscription_id", externalID,
			"fan_id", req.FanID,
			"error", err,
		)
		return SubscribeResult{}, fmt.Errorf("record subscription: %w", err)
	}

	s.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"external_subscription_id", externalID,
		"fan_id", req.FanID,
		"creator_id", req.CreatorID,
		"tier", tier.Name,
	)
	publish(ctx, s.publisher, s.logger, events.SubscriptionCreated, map[string]any{
		"subscription_id":          sub.ID,
		"external_subscription_id": externalID,
		"fan_id":                   req.FanID,
		"fan_email":                fan.Email,
		"creator_id":               req.CreatorID,
		"tier":                     tier.Name,
		"price":                    tier.Price.StringFixed(2),
	})
	return SubscribeResult{ID: sub.ID, SubscriptionID: externalID, Status: status}, nil
}

func (s *SubscriptionService) resolveCustomer(ctx context.Context, fan models.Account) (string, error) {
	if fan.PaymentCustomerID != nil && *fan.PaymentCustomerID != "" {
		return *fan.PaymentCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, square.CustomerInput{Email: fan.Email, ReferenceID: fan.ID})
	if err != nil {
		return "", upstreamError("create customer", err)
	}
	if err := s.accounts.SetPaymentCustomerID(ctx, fan.ID, customerID); err != nil {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	return customerID, nil
}

func (s *SubscriptionService) resolvePlan(ctx context.Context, tier models.SubscriptionTier) (string, error) {
	if tier.PlanID != nil && *tier.PlanID != "" {
		return *tier.PlanID, nil
	}
	planID, err := s.plans.GetOrCreatePlan(ctx, tier.CreatorID, tier.Name, tier.Price)
	if err != nil {
		return "", err
	}
	if err := s.tiers.SetPlanID(ctx, tier.ID, planID); err != nil {
		s.logger.Warn("caching plan id failed", "tier_id", tier.ID, "error", err)
	}
	return planID, nil
}

// Cancel asks the processor to stop renewing the caller's subscription. The
// local status changes when the processor confirms through a webhook.
func (s *SubscriptionService) Cancel(ctx context.Context, callerID, externalID string) (string, error) {
	if strings.TrimSpace(externalID) == "" {
		return "", ErrInvalidRequest
	}
	sub, err := s.subscriptions.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSubscriptionNotFound
		}
		return "", err
	}
	if sub.FanID != callerID {
		s.logger.Warn("cancel attempted by non-owner",
			"security", true,
			"caller_id", callerID,
			"external_subscription_id", externalID,
		)
		return "", ErrNotSubscriptionOwner
	}

	status, err := s.gateway.CancelSubscription(ctx, externalID)
	if err != nil {
		return "", upstreamError("cancel subscription", err)
	}
	if err := s.subscriptions.MarkCancelRequested(ctx, sub.ID, s.now().UTC()); err != nil {
		s.logger.Warn("recording cancel request failed", "subscription_id", sub.ID, "error", err)
	}
	s.logger.Info("subscription cancel requested", "subscription_id", sub.ID, "status", status)
	return status, nil
}

func (s *SubscriptionService) ListForFan(ctx context.Context, fanID string) ([]models.Subscription, error) {
	subs, err := s.subscriptions.ListByFan(ctx, fanID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	return subs, nil
}

type SweepResult struct {
	Expiring int64 `json:"expiring"`
	Expired  int64 `json:"expired"`
}

// SweepExpirations flags subscriptions that lapse within three days and
// expires those already past their paid period.
func (s *SubscriptionService) SweepExpirations(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	expiring, err := s.subscriptions.MarkExpiring(ctx, now, now.Add(expiringWindow))
	if err != nil {
		return SweepResult{}, fmt.Errorf("mark expiring: %w", err)
	}
	expired, err := s.subscriptions.MarkExpired(ctx, now)
	if err != nil {
		return SweepResult{Expiring: expiring}, fmt.Errorf("mark expired: %w", err)
	}
	result := SweepResult{Expiring: expiring, Expired: expired}
	if expiring > 0 || expired > 0 {
		s.logger.Info("subscription sweep", "expiring", expiring, "expired", expired)
		publish(ctx, s.publisher, s.logger, events.SubscriptionsSwept, result)
	}
	return result, nil
}
