package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	RoleFan     = "fan"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
	RoleSystem  = "system"

	CreatorStatusPending  = "pending"
	CreatorStatusApproved = "approved"

	PlatformAccountID = "platform"
)

const (
	SubscriptionPending   = "pending"
	SubscriptionActive    = "active"
	SubscriptionExpiring  = "expiring"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

const (
	AccessPublic      = "public"
	AccessSubscribers = "subscribers"
	AccessPaid        = "paid"

	ResourceStream = "stream"
	ResourceChat   = "chat"
	ResourcePost   = "post"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"

	CouponActive   = "active"
	CouponInactive = "inactive"
)

const (
	PayoutPending  = "pending"
	PayoutApproved = "approved"
	PayoutRejected = "rejected"
)

type Account struct {
	ID                string    `db:"id" json:"id"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	Role              string    `db:"role" json:"role"`
	CreatorStatus     *string   `db:"creator_status" json:"creator_status,omitempty"`
	DisplayName       string    `db:"display_name" json:"display_name"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"-"`
	Currency          string    `db:"currency" json:"currency"`
	Balance           int64     `db:"balance" json:"balance"`
	IsSystem          bool      `db:"is_system" json:"is_system"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type CreatorProfile struct {
	AccountID   string    `db:"account_id" json:"account_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Bio         string    `db:"bio" json:"bio"`
	Country     string    `db:"country" json:"country"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type SubscriptionTier struct {
	ID        string          `db:"id" json:"id"`
	CreatorID string          `db:"creator_id" json:"creator_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Benefits  pq.StringArray  `db:"benefits" json:"benefits"`
	PlanID    *string         `db:"plan_id" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

type Subscription struct {
	ID                string     `db:"id" json:"id"`
	FanID             string     `db:"fan_id" json:"fan_id"`
	CreatorID         string     `db:"creator_id" json:"creator_id"`
	TierID            string     `db:"tier_id" json:"tier_id"`
	TierName          string     `db:"tier_name" json:"tier_name"`
	ExternalID        string     `db:"external_subscription_id" json:"external_subscription_id"`
	Status            string     `db:"status" json:"status"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LastPaymentAt     *time.Time `db:"last_payment_at" json:"last_payment_at,omitempty"`
	CancelRequestedAt *time.Time `db:"cancel_requested_at" json:"cancel_requested_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

type WalletTransaction struct {
	ID          string    `db:"id" json:"id"`
	AccountID   string    `db:"account_id" json:"account_id"`
	Type        string    `db:"type" json:"type"`
	Amount      int64     `db:"amount" json:"amount"`
	SourceID    string    `db:"source_id" json:"source_id"`
	Description string    `db:"description" json:"description"`
	Metadata    string    `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Signed returns the amount with the sign implied by the entry type.
func (t WalletTransaction) Signed() int64 {
	if t.Type == TxDebit {
		return -t.Amount
	}
	return t.Amount
}

type Coupon struct {
	Code          string          `db:"code" json:"code"`
	DiscountType  string          `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal `db:"discount_value" json:"discount_value"`
	UsageLimit    *int            `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount    int             `db:"usage_count" json:"usage_count"`
	ExpiresAt     *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

type BankDetails struct {
	Country       string `json:"country"`
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	SortCode      string `json:"sort_code,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
}

func (b BankDetails) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *BankDetails) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	case nil:
		*b = BankDetails{}
		return nil
	default:
		return errors.New("bank details: unsupported column type")
	}
}

type PayoutRequest struct {
	ID          string      `db:"id" json:"id"`
	CreatorID   string      `db:"creator_id" json:"creator_id"`
	Amount      int64       `db:"amount" json:"amount"`
	Currency    string      `db:"currency" json:"currency"`
	BankDetails BankDetails `db:"bank_details" json:"bank_details"`
	Status      string      `db:"status" json:"status"`
	ReviewedBy  *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

type Resource struct {
	ID         string              `db:"id" json:"id"`
	OwnerID    string              `db:"owner_id" json:"owner_id"`
	Kind       string              `db:"kind" json:"kind"`
	Title      string              `db:"title" json:"title"`
	AccessType string              `db:"access_type" json:"access_type"`
	Price      decimal.NullDecimal `db:"price" json:"price"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}

type Purchase struct {
	ID         string    `db:"id" json:"id"`
	ViewerID   string    `db:"viewer_id" json:"viewer_id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	PaymentID  string    `db:"payment_id" json:"payment_id"`
	Amount     int64     `db:"amount" json:"amount"`
	CouponCode *string   `db:"coupon_code" json:"coupon_code,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BalanceDrift is one row of the stored balance versus ledger sum comparison.
type BalanceDrift struct {
	AccountID      string `db:"account_id" json:"account_id"`
	LedgerSum      int64  `db:"ledger_sum" json:"ledger_sum"`
	AccountBalance int64  `db:"account_balance" json:"account_balance"`
	Difference     int64  `db:"difference" json:"difference"`
}
