package store

import (
	"context"

	"creatorpay/internal/models"
)

const tierColumns = `id, creator_id, name, price, benefits, plan_id, created_at, updated_at`

type TierStore struct {
	db DB
}

func NewTierStore(db DB) *TierStore {
	return &TierStore{db: db}
}

func (s *TierStore) GetByCreatorAndName(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) {
	var row models.SubscriptionTier
	err := s.db.GetContext(ctx, &row, `
		SELECT `+tierColumns+`
		FROM subscription_tiers
		WHERE creator_id = $1 AND name = $2
	`, creatorID, name)
	return row, err
}

func (s *TierStore) ListByCreator(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error) {
	var rows []models.SubscriptionTier
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+tierColumns+`
		FROM subscription_tiers
		WHERE creator_id = $1
		ORDER BY price, name
	`, creatorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert creates or edits a tier by (creator, name). A price change drops the
// cached plan id so the next subscriber provisions a plan at the new price.
func (s *TierStore) Upsert(ctx context.Context, tier models.SubscriptionTier) (models.SubscriptionTier, error) {
	var row models.SubscriptionTier
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO subscription_tiers (id, creator_id, name, price, benefits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (creator_id, name) DO UPDATE
		SET price = EXCLUDED.price,
		    benefits = EXCLUDED.benefits,
		    plan_id = CASE WHEN subscription_tiers.price = EXCLUDED.price THEN subscription_tiers.plan_id ELSE NULL END,
		    updated_at = NOW()
		RETURNING `+tierColumns+`
	`, tier.ID, tier.CreatorID, tier.Name, tier.Price, tier.Benefits)
	return row, err
}

func (s *TierStore) SetPlanID(ctx context.Context, tierID, planID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE subscription_tiers
		SET plan_id = $1, updated_at = NOW()
		WHERE id = $2
	`, planID, tierID)
	return err
}

func (s *TierStore) DeleteByCreator(ctx context.Context, tx Execer, creatorID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM subscription_tiers WHERE creator_id = $1`, creatorID)
	return err
}
