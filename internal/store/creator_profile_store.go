package store

import (
	"context"

	"creatorpay/internal/models"
)

type CreatorProfileStore struct {
	db DB
}

func NewCreatorProfileStore(db DB) *CreatorProfileStore {
	return &CreatorProfileStore{db: db}
}

func (s *CreatorProfileStore) Upsert(ctx context.Context, tx Execer, profile models.CreatorProfile) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO creator_profiles (account_id, display_name, bio, country)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    bio = EXCLUDED.bio,
		    country = EXCLUDED.country
	`, profile.AccountID, profile.DisplayName, profile.Bio, profile.Country)
	return err
}

func (s *CreatorProfileStore) Get(ctx context.Context, accountID string) (models.CreatorProfile, error) {
	var row models.CreatorProfile
	err := s.db.GetContext(ctx, &row, `
		SELECT account_id, display_name, bio, country, created_at
		FROM creator_profiles
		WHERE account_id = $1
	`, accountID)
	return row, err
}

func (s *CreatorProfileStore) Delete(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM creator_profiles WHERE account_id = $1`, accountID)
	return err
}
