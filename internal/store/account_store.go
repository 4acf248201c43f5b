package store

import (
	"context"

	"creatorpay/internal/models"
)

const accountColumns = `id, email, password_hash, role, creator_status, display_name,
		       payment_customer_id, currency, balance, is_system, created_at`

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, creator_status, display_name, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.Email, account.PasswordHash, account.Role, account.CreatorStatus, account.DisplayName, account.Currency)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return row, err
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
	return row, err
}

func (s *AccountStore) GetRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.GetContext(ctx, &role, `SELECT role FROM accounts WHERE id = $1`, userID)
	return role, err
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	return row, err
}

// AdjustBalance applies delta and returns the resulting balance.
func (s *AccountStore) AdjustBalance(ctx context.Context, tx Getter, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, delta, accountID)
	return balance, err
}

func (s *AccountStore) SetPaymentCustomerID(ctx context.Context, accountID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET payment_customer_id = $1, updated_at = NOW()
		WHERE id = $2
	`, customerID, accountID)
	return err
}

func (s *AccountStore) SetCreatorStatus(ctx context.Context, tx Execer, accountID, status string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET creator_status = $1, updated_at = NOW()
		WHERE id = $2 AND role = 'creator'
	`, status, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccountStore) Delete(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1 AND is_system = FALSE`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *AccountStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM accounts WHERE role = 'admin'`)
	return count > 0, err
}

func (s *AccountStore) ListCreatorsByStatus(ctx context.Context, status string) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE role = 'creator' AND creator_status = $1
		ORDER BY created_at
	`, status)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
