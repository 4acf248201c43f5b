package store

import (
	"context"
	"time"

	"creatorpay/internal/models"
)

const payoutColumns = `id, creator_id, amount, currency, bank_details, status, reviewed_by, reviewed_at, created_at`

type PayoutStore struct {
	db DB
}

func NewPayoutStore(db DB) *PayoutStore {
	return &PayoutStore{db: db}
}

func (s *PayoutStore) Create(ctx context.Context, payout models.PayoutRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payout_requests (id, creator_id, amount, currency, bank_details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, payout.ID, payout.CreatorID, payout.Amount, payout.Currency, payout.BankDetails, payout.Status)
	return err
}

func (s *PayoutStore) Get(ctx context.Context, id string) (models.PayoutRequest, error) {
	var row models.PayoutRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)
	return row, err
}

// List filters by status when one is given.
func (s *PayoutStore) List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+`
		FROM payout_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PayoutStore) ListByCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+`
		FROM payout_requests
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`, creatorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PayoutStore) PendingTotal(ctx context.Context, creatorID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payout_requests
		WHERE creator_id = $1 AND status = 'pending'
	`, creatorID)
	return total, err
}

// Review moves a pending request to status. Zero rows means it was not pending.
func (s *PayoutStore) Review(ctx context.Context, tx Execer, id, status, reviewerID string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $1, reviewed_by = $2, reviewed_at = $3
		WHERE id = $4 AND status = 'pending'
	`, status, reviewerID, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
