package store

import (
	"context"

	"creatorpay/internal/models"
)

type WalletStore struct {
	db DB
}

type WalletEntryInput struct {
	ID          string
	AccountID   string
	Type        string
	Amount      int64
	SourceID    string
	Description string
	Metadata    string
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// Insert appends a ledger entry. It reports false when an entry for the same
// (account, source) pair already exists.
func (s *WalletStore) Insert(ctx context.Context, tx Execer, entry WalletEntryInput) (bool, error) {
	metadata := entry.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, account_id, type, amount, source_id, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, source_id) DO NOTHING
	`, entry.ID, entry.AccountID, entry.Type, entry.Amount, entry.SourceID, entry.Description, metadata)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *WalletStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, type, amount, source_id, description, metadata, created_at
		FROM wallet_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WalletStore) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type = 'debit' THEN -amount ELSE amount END), 0)
		FROM wallet_transactions
		WHERE account_id = $1
	`, accountID)
	return sum, err
}

// Drift lists accounts whose stored balance differs from their ledger sum.
func (s *WalletStore) Drift(ctx context.Context) ([]models.BalanceDrift, error) {
	var rows []models.BalanceDrift
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       COALESCE(SUM(CASE WHEN w.type = 'debit' THEN -w.amount ELSE w.amount END), 0) AS ledger_sum,
		       a.balance AS account_balance,
		       (a.balance - COALESCE(SUM(CASE WHEN w.type = 'debit' THEN -w.amount ELSE w.amount END), 0)) AS difference
		FROM accounts a
		LEFT JOIN wallet_transactions w ON w.account_id = a.id
		GROUP BY a.id, a.balance
		HAVING a.balance <> COALESCE(SUM(CASE WHEN w.type = 'debit' THEN -w.amount ELSE w.amount END), 0)
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
