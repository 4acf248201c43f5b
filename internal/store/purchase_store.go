package store

import (
	"context"

	"creatorpay/internal/models"
)

type PurchaseStore struct {
	db DB
}

func NewPurchaseStore(db DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func (s *PurchaseStore) Create(ctx context.Context, tx Execer, purchase models.Purchase) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (id, viewer_id, resource_id, payment_id, amount, coupon_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, purchase.ID, purchase.ViewerID, purchase.ResourceID, purchase.PaymentID, purchase.Amount, purchase.CouponCode)
	return err
}

func (s *PurchaseStore) Exists(ctx context.Context, viewerID, resourceID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM purchases
		WHERE viewer_id = $1 AND resource_id = $2
	`, viewerID, resourceID)
	return count > 0, err
}

func (s *PurchaseStore) ListByViewer(ctx context.Context, viewerID string) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, viewer_id, resource_id, payment_id, amount, coupon_code, created_at
		FROM purchases
		WHERE viewer_id = $1
		ORDER BY created_at DESC
	`, viewerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
