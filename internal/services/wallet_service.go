package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"creatorpay/internal/db"
	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/money"
	"creatorpay/internal/store"
	"creatorpay/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type WalletAccountStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error)
}

type WalletEntryStore interface {
	Insert(ctx context.Context, tx store.Execer, entry store.WalletEntryInput) (bool, error)
	Drift(ctx context.Context) ([]models.BalanceDrift, error)
}

type WalletHub interface {
	BroadcastWallet(accountID string, update websocket.WalletUpdate)
}

type WalletService struct {
	txRunner          db.TxRunner
	accounts          WalletAccountStore
	entries           WalletEntryStore
	hub               WalletHub
	publisher         EventPublisher
	commission        decimal.Decimal
	currency          string
	platformAccountID string
	logger            *slog.Logger
}

func NewWalletService(txRunner db.TxRunner, accounts WalletAccountStore, entries WalletEntryStore, hub WalletHub, publisher EventPublisher, commission decimal.Decimal, currency string, logger *slog.Logger) *WalletService {
	return &WalletService{
		txRunner:          txRunner,
		accounts:          accounts,
		entries:           entries,
		hub:               hub,
		publisher:         publisher,
		commission:        commission,
		currency:          currency,
		platformAccountID: models.PlatformAccountID,
		logger:            orDiscard(logger),
	}
}

type CreditRequest struct {
	AccountID          string
	AmountMinor        int64
	SourceID           string
	Description        string
	Metadata           map[string]any
	ApplyPlatformSplit bool
	// Finalize runs inside the credit transaction. It is skipped when the
	// source was already credited.
	Finalize func(tx *sqlx.Tx) error
}

type CreditResult struct {
	Duplicate      bool
	CreatorAmount  int64
	PlatformAmount int64
	Balance        int64
}

type DebitRequest struct {
	AccountID   string
	AmountMinor int64
	SourceID    string
	Description string
	Metadata    map[string]any
	Finalize    func(tx *sqlx.Tx) error
}

type DebitResult struct {
	Duplicate bool
	Balance   int64
}

type posting struct {
	accountID string
	amount    int64
	balance   int64
	applied   bool
}

// Credit appends credit entries for req.SourceID and moves the stored
// balances in the same transaction. A source already present in the ledger is
// reported as Duplicate and changes nothing.
func (s *WalletService) Credit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	if req.AmountMinor <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	if req.AccountID == "" || req.SourceID == "" {
		return CreditResult{}, ErrInvalidRequest
	}
	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return CreditResult{}, err
	}

	var platformShare int64
	if req.ApplyPlatformSplit && req.AccountID != s.platformAccountID {
		platformShare = money.Percent(req.AmountMinor, s.commission)
	}
	result := CreditResult{
		CreatorAmount:  req.AmountMinor - platformShare,
		PlatformAmount: platformShare,
	}

	postings := make([]posting, 0, 2)
	if result.CreatorAmount > 0 {
		postings = append(postings, posting{accountID: req.AccountID, amount: result.CreatorAmount})
	}
	if platformShare > 0 {
		postings = append(postings, posting{accountID: s.platformAccountID, amount: platformShare})
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result.Duplicate = false
		for i := range postings {
			postings[i].balance = 0
			postings[i].applied = false
		}
		if err := s.lockAccounts(ctx, tx, postings); err != nil {
			return err
		}
		for i, p := range postings {
			inserted, err := s.entries.Insert(ctx, tx, store.WalletEntryInput{
				ID:          uuid.NewString(),
				AccountID:   p.accountID,
				Type:        models.TxCredit,
				Amount:      p.amount,
				SourceID:    req.SourceID,
				Description: req.Description,
				Metadata:    metadata,
			})
			if err != nil {
				return err
			}
			if !inserted {
				if i == 0 {
					result.Duplicate = true
					return nil
				}
				continue
			}
			balance, err := s.accounts.AdjustBalance(ctx, tx, p.accountID, p.amount)
			if err != nil {
				return err
			}
			postings[i].balance = balance
			postings[i].applied = true
		}
		if req.Finalize != nil {
			return req.Finalize(tx)
		}
		return nil
	})
	if err != nil {
		return CreditResult{}, err
	}

	if result.Duplicate {
		s.logger.Info("duplicate credit ignored", "account_id", req.AccountID, "source_id", req.SourceID)
		return result, nil
	}
	for _, p := range postings {
		if !p.applied {
			continue
		}
		if p.accountID == req.AccountID {
			result.Balance = p.balance
		}
		s.broadcast(p, models.TxCredit, req.SourceID)
	}
	s.logger.Info("wallet credited",
		"account_id", req.AccountID,
		"source_id", req.SourceID,
		"creator_amount", result.CreatorAmount,
		"platform_amount", result.PlatformAmount,
	)
	publish(ctx, s.publisher, s.logger, events.WalletCredited, map[string]any{
		"account_id":      req.AccountID,
		"source_id":       req.SourceID,
		"amount":          req.AmountMinor,
		"creator_amount":  result.CreatorAmount,
		"platform_amount": result.PlatformAmount,
		"currency":        s.currency,
	})
	return result, nil
}

// Debit removes funds from an account. The balance never goes negative.
func (s *WalletService) Debit(ctx context.Context, req DebitRequest) (DebitResult, error) {
	if req.AmountMinor <= 0 {
		return DebitResult{}, ErrInvalidAmount
	}
	if req.AccountID == "" || req.SourceID == "" {
		return DebitResult{}, ErrInvalidRequest
	}
	metadata, err := encodeMetadata(req.Metadata)
	if err != nil {
		return DebitResult{}, err
	}

	var result DebitResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = DebitResult{}
		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountNotFound
			}
			return err
		}
		inserted, err := s.entries.Insert(ctx, tx, store.WalletEntryInput{
			ID:          uuid.NewString(),
			AccountID:   req.AccountID,
			Type:        models.TxDebit,
			Amount:      req.AmountMinor,
			SourceID:    req.SourceID,
			Description: req.Description,
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.Duplicate = true
			return nil
		}
		if account.Balance < req.AmountMinor {
			return ErrInsufficientFunds
		}
		balance, err := s.accounts.AdjustBalance(ctx, tx, req.AccountID, -req.AmountMinor)
		if err != nil {
			return err
		}
		result.Balance = balance
		if req.Finalize != nil {
			return req.Finalize(tx)
		}
		return nil
	})
	if err != nil {
		return DebitResult{}, err
	}
	if result.Duplicate {
		s.logger.Info("duplicate debit ignored", "account_id", req.AccountID, "source_id", req.SourceID)
		return result, nil
	}
	s.broadcast(posting{accountID: req.AccountID, amount: req.AmountMinor, balance: result.Balance}, models.TxDebit, req.SourceID)
	s.logger.Info("wallet debited", "account_id", req.AccountID, "source_id", req.SourceID, "amount", req.AmountMinor)
	return result, nil
}

// Reconcile lists every account whose stored balance disagrees with its
// ledger.
func (s *WalletService) Reconcile(ctx context.Context) ([]models.BalanceDrift, error) {
	drift, err := s.entries.Drift(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if drift == nil {
		drift = []models.BalanceDrift{}
	}
	return drift, nil
}

// lockAccounts takes row locks in id order so concurrent credits touching the
// same pair cannot deadlock.
func (s *WalletService) lockAccounts(ctx context.Context, tx *sqlx.Tx, postings []posting) error {
	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		ids = append(ids, p.accountID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := s.accounts.GetForUpdate(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
			}
			return err
		}
	}
	return nil
}

func (s *WalletService) broadcast(p posting, entryType, sourceID string) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastWallet(p.accountID, websocket.WalletUpdate{
		AccountID: p.accountID,
		Balance:   money.FormatMinor(p.balance),
		Currency:  s.currency,
		EntryType: entryType,
		Amount:    money.FormatMinor(p.amount),
		SourceID:  sourceID,
	})
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}
