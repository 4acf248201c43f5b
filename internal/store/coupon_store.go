package store

import (
	"context"
	"strings"
	"time"

	"creatorpay/internal/models"
)

const couponColumns = `code, discount_type, discount_value, usage_limit, usage_count, expires_at, status, created_at`

// CouponStore keys coupons by their lower-cased code.
type CouponStore struct {
	db DB
}

func NewCouponStore(db DB) *CouponStore {
	return &CouponStore{db: db}
}

func (s *CouponStore) Create(ctx context.Context, coupon models.Coupon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, usage_limit, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, strings.ToLower(coupon.Code), coupon.DiscountType, coupon.DiscountValue, coupon.UsageLimit, coupon.ExpiresAt, coupon.Status)
	return err
}

func (s *CouponStore) Get(ctx context.Context, code string) (models.Coupon, error) {
	var row models.Coupon
	err := s.db.GetContext(ctx, &row, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, strings.ToLower(code))
	return row, err
}

func (s *CouponStore) List(ctx context.Context) ([]models.Coupon, error) {
	var rows []models.Coupon
	err := s.db.SelectContext(ctx, &rows, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CouponStore) SetStatus(ctx context.Context, code, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE coupons SET status = $1 WHERE code = $2`, status, strings.ToLower(code))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Redeem consumes one use of an active, unexpired coupon with remaining
// capacity. It returns sql.ErrNoRows when the coupon cannot be redeemed.
func (s *CouponStore) Redeem(ctx context.Context, code string, now time.Time) (models.Coupon, error) {
	var row models.Coupon
	err := s.db.GetContext(ctx, &row, `
		UPDATE coupons
		SET usage_count = usage_count + 1
		WHERE code = $1
		  AND status = 'active'
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING `+couponColumns+`
	`, strings.ToLower(code), now)
	return row, err
}

// Release returns a use taken by Redeem when the purchase did not complete.
func (s *CouponStore) Release(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET usage_count = usage_count - 1
		WHERE code = $1 AND usage_count > 0
	`, strings.ToLower(code))
	return err
}
