package handlers

import (
	"context"

	"creatorpay/internal/models"
	"creatorpay/internal/services"
	"creatorpay/internal/store"
)

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetRole(ctx context.Context, userID string) (string, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, tx store.Execer, profile models.CreatorProfile) error
}

type LedgerReader interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error)
	SumByAccount(ctx context.Context, accountID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type ContentService interface {
	SaveTier(ctx context.Context, creatorID string, in services.TierInput) (models.SubscriptionTier, error)
	ListTiers(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error)
	CreateResource(ctx context.Context, ownerID string, in services.ResourceInput) (models.Resource, error)
	ListResources(ctx context.Context, ownerID string) ([]models.Resource, error)
}

type SubscriptionService interface {
	Subscribe(ctx context.Context, req services.SubscribeRequest) (services.SubscribeResult, error)
	Cancel(ctx context.Context, callerID, externalID string) (string, error)
	ListForFan(ctx context.Context, fanID string) ([]models.Subscription, error)
}

type PurchaseService interface {
	Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
}

type AccessService interface {
	ResolveByID(ctx context.Context, viewerID, resourceID string) (services.AccessDecision, error)
}

type CouponService interface {
	Validate(ctx context.Context, code string) (models.Coupon, error)
	Create(ctx context.Context, in services.CouponInput) (models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	SetStatus(ctx context.Context, code, status string) error
}

type PayoutService interface {
	Request(ctx context.Context, creatorID string, amountMinor int64, bank models.BankDetails) (models.PayoutRequest, error)
	Approve(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error)
	Reject(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error)
	ListForCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error)
}

type CreatorService interface {
	Verify(ctx context.Context, req services.VerifyCreatorRequest) error
	ListPending(ctx context.Context) ([]models.Account, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) ([]models.BalanceDrift, error)
}

type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) error
}
