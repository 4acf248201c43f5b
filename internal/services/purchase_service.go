package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"creatorpay/internal/db"
	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/money"
	"creatorpay/internal/square"
	"creatorpay/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PurchaseStore interface {
	Exists(ctx context.Context, viewerID, resourceID string) (bool, error)
	Create(ctx context.Context, tx store.Execer, purchase models.Purchase) error
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, in square.OrderInput, idempotencyKey string) (string, error)
	CreatePayment(ctx context.Context, in square.PaymentInput, idempotencyKey string) (string, string, error)
}

type CouponRedeemer interface {
	Redeem(ctx context.Context, code string) (models.Coupon, error)
	Release(ctx context.Context, code string) error
}

type PurchaseService struct {
	txRunner  db.TxRunner
	resources ResourceLookup
	purchases PurchaseStore
	gateway   PaymentGateway
	coupons   CouponRedeemer
	wallet    Crediter
	publisher EventPublisher
	currency  string
	logger    *slog.Logger
}

func NewPurchaseService(txRunner db.TxRunner, resources ResourceLookup, purchases PurchaseStore, gateway PaymentGateway, coupons CouponRedeemer, wallet Crediter, publisher EventPublisher, currency string, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		txRunner:  txRunner,
		resources: resources,
		purchases: purchases,
		gateway:   gateway,
		coupons:   coupons,
		wallet:    wallet,
		publisher: publisher,
		currency:  currency,
		logger:    orDiscard(logger),
	}
}

type PurchaseRequest struct {
	ViewerID   string
	ResourceID string
	SourceID   string
	CouponCode string
}

type PurchaseResult struct {
	PurchaseID  string `json:"purchase_id"`
	PaymentID   string `json:"payment_id"`
	AmountMinor int64  `json:"-"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

// Purchase charges the viewer once for a paid resource, records the purchase
// and credits the owner with the platform split applied.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (result PurchaseResult, err error) {
	if req.ViewerID == "" || strings.TrimSpace(req.ResourceID) == "" {
		return PurchaseResult{}, ErrInvalidRequest
	}
	resource, err := s.resources.Get(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PurchaseResult{}, ErrResourceNotFound
		}
		return PurchaseResult{}, err
	}
	if resource.AccessType != models.AccessPaid || !resource.Price.Valid || !resource.Price.Decimal.IsPositive() || resource.OwnerID == req.ViewerID {
		return PurchaseResult{}, ErrNotPurchasable
	}
	owned, err := s.purchases.Exists(ctx, req.ViewerID, resource.ID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if owned {
		return PurchaseResult{}, ErrAlreadyPurchased
	}

	amount := money.ToMinor(resource.Price.Decimal)
	var couponCode *string
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		var coupon models.Coupon
		coupon, err = s.coupons.Redeem(ctx, code)
		if err != nil {
			return PurchaseResult{}, err
		}
		couponCode = &coupon.Code
		defer func() {
			if err != nil {
				_ = s.coupons.Release(context.WithoutCancel(ctx), coupon.Code)
			}
		}()
		amount = ApplyDiscount(coupon, amount)
	}

	paymentID, err := s.charge(ctx, req, resource, amount)
	if err != nil {
		return PurchaseResult{}, err
	}

	purchase := models.Purchase{
		ID:         uuid.NewString(),
		ViewerID:   req.ViewerID,
		ResourceID: resource.ID,
		PaymentID:  paymentID,
		Amount:     amount,
		CouponCode: couponCode,
	}
	record := func(tx *sqlx.Tx) error {
		return s.purchases.Create(ctx, tx, purchase)
	}
	if amount > 0 {
		_, err = s.wallet.Credit(ctx, CreditRequest{
			AccountID:          resource.OwnerID,
			AmountMinor:        amount,
			SourceID:           paymentID,
			Description:        "purchase: " + resource.Title,
			ApplyPlatformSplit: true,
			Metadata: map[string]any{
				"resource_id": resource.ID,
				"viewer_id":   req.ViewerID,
				"purchase_id": purchase.ID,
			},
			Finalize: record,
		})
	} else {
		err = s.txRunner.WithTx(ctx, record)
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			s.logger.Error("payment taken for an already purchased resource",
				"payment_id", paymentID,
				"viewer_id", req.ViewerID,
				"resource_id", resource.ID,
			)
			return PurchaseResult{}, ErrAlreadyPurchased
		}
		s.logger.Error("payment taken but purchase not recorded", "payment_id", paymentID, "error", err)
		return PurchaseResult{}, fmt.Errorf("record purchase: %w", err)
	}

	s.logger.Info("resource purchased",
		"purchase_id", purchase.ID,
		"resource_id", resource.ID,
		"viewer_id", req.ViewerID,
		"amount", amount,
	)
	publish(ctx, s.publisher, s.logger, events.PurchaseCompleted, map[string]any{
		"purchase_id": purchase.ID,
		"resource_id": resource.ID,
		"viewer_id":   req.ViewerID,
		"owner_id":    resource.OwnerID,
		"amount":      amount,
		"currency":    s.currency,
	})
	return PurchaseResult{
		PurchaseID:  purchase.ID,
		PaymentID:   paymentID,
		AmountMinor: amount,
		Amount:      money.FormatMinor(amount),
		Currency:    s.currency,
	}, nil
}

// charge takes the payment and returns the id used as the ledger source. A
// fully discounted purchase is not sent to the processor.
func (s *PurchaseService) charge(ctx context.Context, req PurchaseRequest, resource models.Resource, amount int64) (string, error) {
	if amount == 0 {
		return "coupon:" + uuid.NewString(), nil
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return "", ErrInvalidRequest
	}
	orderID, err := s.gateway.CreateOrder(ctx, square.OrderInput{
		Name:        resource.Title,
		AmountMinor: amount,
		Currency:    s.currency,
	}, uuid.NewString())
	if err != nil {
		return "", upstreamError("create order", err)
	}
	paymentID, status, err := s.gateway.CreatePayment(ctx, square.PaymentInput{
		SourceID:    req.SourceID,
		AmountMinor: amount,
		Currency:    s.currency,
		ReferenceID: resource.ID,
		OrderID:     orderID,
	}, uuid.NewString())
	if err != nil {
		return "", upstreamError("create payment", err)
	}
	if status != square.PaymentCompleted && status != square.PaymentApproved {
		s.logger.Warn("payment not completed", "payment_id", paymentID, "status", status)
		return "", fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, status)
	}
	return paymentID, nil
}
