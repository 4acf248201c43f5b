package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creatorpay/internal/db"
	"creatorpay/internal/models"
	"creatorpay/internal/money"
	"creatorpay/internal/validator"

	"github.com/shopspring/decimal"
)

var hundredPercent = decimal.NewFromInt(100)

type CouponStore interface {
	Create(ctx context.Context, coupon models.Coupon) error
	Get(ctx context.Context, code string) (models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	SetStatus(ctx context.Context, code, status string) (int64, error)
	Redeem(ctx context.Context, code string, now time.Time) (models.Coupon, error)
	Release(ctx context.Context, code string) error
}

type CouponService struct {
	coupons CouponStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewCouponService(coupons CouponStore, logger *slog.Logger) *CouponService {
	return &CouponService{coupons: coupons, logger: orDiscard(logger), now: time.Now}
}

type CouponInput struct {
	Code          string
	DiscountType  string
	DiscountValue decimal.Decimal
	UsageLimit    *int
	ExpiresAt     *time.Time
}

// Usable reports whether c can be redeemed at now.
func Usable(c models.Coupon, now time.Time) bool {
	if c.Status != models.CouponActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}

// ApplyDiscount returns amountMinor after the coupon's discount, never below
// zero.
func ApplyDiscount(c models.Coupon, amountMinor int64) int64 {
	var off int64
	switch c.DiscountType {
	case models.DiscountPercentage:
		off = money.Percent(amountMinor, c.DiscountValue)
	case models.DiscountFixed:
		off = money.ToMinor(c.DiscountValue)
	}
	if off >= amountMinor {
		return 0
	}
	return amountMinor - off
}

// Validate looks up a coupon without consuming it.
func (s *CouponService) Validate(ctx context.Context, code string) (models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.Coupon{}, ErrCouponNotFound
	}
	coupon, err := s.coupons.Get(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coupon{}, ErrCouponNotFound
		}
		return models.Coupon{}, err
	}
	if !Usable(coupon, s.now()) {
		return models.Coupon{}, ErrCouponNotFound
	}
	return coupon, nil
}

func (s *CouponService) Create(ctx context.Context, in CouponInput) (models.Coupon, error) {
	code := strings.ToLower(strings.TrimSpace(in.Code))
	if err := validator.ValidateCouponCode(code); err != nil {
		return models.Coupon{}, fmt.Errorf("%w: %v", ErrInvalidCoupon, err)
	}
	if !in.DiscountValue.IsPositive() {
		return models.Coupon{}, fmt.Errorf("%w: discount must be positive", ErrInvalidCoupon)
	}
	switch in.DiscountType {
	case models.DiscountPercentage:
		if in.DiscountValue.GreaterThan(hundredPercent) {
			return models.Coupon{}, fmt.Errorf("%w: percentage above 100", ErrInvalidCoupon)
		}
	case models.DiscountFixed:
	default:
		return models.Coupon{}, fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, in.DiscountType)
	}
	if in.UsageLimit != nil && *in.UsageLimit <= 0 {
		return models.Coupon{}, fmt.Errorf("%w: usage limit must be positive", ErrInvalidCoupon)
	}

	coupon := models.Coupon{
		Code:          code,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		UsageLimit:    in.UsageLimit,
		ExpiresAt:     in.ExpiresAt,
		Status:        models.CouponActive,
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err) {
			return models.Coupon{}, ErrCouponExists
		}
		return models.Coupon{}, err
	}
	s.logger.Info("coupon created", "code", code, "type", in.DiscountType)
	return coupon, nil
}

func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return nil, err
	}
	if coupons == nil {
		coupons = []models.Coupon{}
	}
	return coupons, nil
}

func (s *CouponService) SetStatus(ctx context.Context, code, status string) error {
	if status != models.CouponActive && status != models.CouponInactive {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidCoupon, status)
	}
	rows, err := s.coupons.SetStatus(ctx, code, status)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCouponNotFound
	}
	s.logger.Info("coupon status changed", "code", strings.ToLower(code), "status", status)
	return nil
}

// Redeem consumes one use of the coupon.
func (s *CouponService) Redeem(ctx context.Context, code string) (models.Coupon, error) {
	coupon, err := s.coupons.Redeem(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Coupon{}, ErrCouponNotFound
		}
		return models.Coupon{}, err
	}
	return coupon, nil
}

// Release gives back a use taken by Redeem.
func (s *CouponService) Release(ctx context.Context, code string) error {
	if err := s.coupons.Release(ctx, code); err != nil {
		s.logger.Warn("coupon release failed", "code", code, "error", err)
		return err
	}
	return nil
}
