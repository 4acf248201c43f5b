package store

import (
	"context"
	"time"

	"creatorpay/internal/models"
)

const subscriptionColumns = `id, fan_id, creator_id, tier_id, tier_name, external_subscription_id, status,
		       expires_at, last_payment_at, cancel_requested_at, created_at, updated_at`

type SubscriptionStore struct {
	db DB
}

func NewSubscriptionStore(db DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Create(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, fan_id, creator_id, tier_id, tier_name, external_subscription_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.ID, sub.FanID, sub.CreatorID, sub.TierID, sub.TierName, sub.ExternalID, sub.Status, sub.ExpiresAt)
	return err
}

func (s *SubscriptionStore) GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error) {
	var row models.Subscription
	err := s.db.GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE external_subscription_id = $1
	`, externalID)
	return row, err
}

func (s *SubscriptionStore) ListByFan(ctx context.Context, fanID string) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE fan_id = $1
		ORDER BY created_at DESC
	`, fanID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasAccess reports whether fan holds an entitling subscription to creator at
// now: active, expiring or cancelled, with paid time remaining.
func (s *SubscriptionStore) HasAccess(ctx context.Context, fanID, creatorID string, now time.Time) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM subscriptions
		WHERE fan_id = $1
		  AND creator_id = $2
		  AND status IN ('active', 'expiring', 'cancelled')
		  AND expires_at IS NOT NULL
		  AND expires_at > $3
	`, fanID, creatorID, now)
	return count > 0, err
}

func (s *SubscriptionStore) Activate(ctx context.Context, tx Execer, id string, paidAt, expiresAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'active', last_payment_at = $1, expires_at = $2, updated_at = NOW()
		WHERE id = $3
	`, paidAt, expiresAt, id)
	return err
}

func (s *SubscriptionStore) SetStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	return err
}

func (s *SubscriptionStore) MarkCancelRequested(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET cancel_requested_at = $1, updated_at = NOW()
		WHERE id = $2
	`, at, id)
	return err
}

// MarkExpiring flags active subscriptions whose paid period ends before cutoff.
func (s *SubscriptionStore) MarkExpiring(ctx context.Context, now, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expiring', updated_at = NOW()
		WHERE status = 'active' AND expires_at > $1 AND expires_at <= $2
	`, now, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SubscriptionStore) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status IN ('active', 'expiring', 'cancelled') AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
