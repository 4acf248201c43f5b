package store

import (
	"context"

	"creatorpay/internal/models"
)

type ResourceStore struct {
	db DB
}

func NewResourceStore(db DB) *ResourceStore {
	return &ResourceStore{db: db}
}

func (s *ResourceStore) Create(ctx context.Context, resource models.Resource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, owner_id, kind, title, access_type, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, resource.ID, resource.OwnerID, resource.Kind, resource.Title, resource.AccessType, resource.Price)
	return err
}

func (s *ResourceStore) Get(ctx context.Context, id string) (models.Resource, error) {
	var row models.Resource
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner_id, kind, title, access_type, price, created_at
		FROM resources
		WHERE id = $1
	`, id)
	return row, err
}

func (s *ResourceStore) DeleteByOwner(ctx context.Context, tx Execer, ownerID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE owner_id = $1`, ownerID)
	return err
}

func (s *ResourceStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Resource, error) {
	var rows []models.Resource
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, owner_id, kind, title, access_type, price, created_at
		FROM resources
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
