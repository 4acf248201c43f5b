package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creatorpay/internal/db"
	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/store"
	"creatorpay/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PayoutStore interface {
	Create(ctx context.Context, payout models.PayoutRequest) error
	Get(ctx context.Context, id string) (models.PayoutRequest, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error)
	PendingTotal(ctx context.Context, creatorID string) (int64, error)
	Review(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error)
}

type AccountReader interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
}

type Debiter interface {
	Debit(ctx context.Context, req DebitRequest) (DebitResult, error)
}

// PayoutService handles creator withdrawal requests. Approval debits the
// wallet; moving money to the bank happens outside this system.
type PayoutService struct {
	txRunner  db.TxRunner
	payouts   PayoutStore
	accounts  AccountReader
	wallet    Debiter
	audit     AuditStore
	publisher EventPublisher
	currency  string
	logger    *slog.Logger
	now       func() time.Time
}

func NewPayoutService(txRunner db.TxRunner, payouts PayoutStore, accounts AccountReader, wallet Debiter, audit AuditStore, publisher EventPublisher, currency string, logger *slog.Logger) *PayoutService {
	return &PayoutService{
		txRunner:  txRunner,
		payouts:   payouts,
		accounts:  accounts,
		wallet:    wallet,
		audit:     audit,
		publisher: publisher,
		currency:  currency,
		logger:    orDiscard(logger),
		now:       time.Now,
	}
}

// Request records a pending payout. The amount must fit in the balance left
// after other pending requests.
func (s *PayoutService) Request(ctx context.Context, creatorID string, amountMinor int64, bank models.BankDetails) (models.PayoutRequest, error) {
	if amountMinor <= 0 {
		return models.PayoutRequest{}, ErrInvalidAmount
	}
	if err := validator.ValidateBankDetails(bank); err != nil {
		return models.PayoutRequest{}, ErrInvalidBankDetails
	}
	account, err := s.accounts.GetByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PayoutRequest{}, ErrAccountNotFound
		}
		return models.PayoutRequest{}, err
	}
	pending, err := s.payouts.PendingTotal(ctx, creatorID)
	if err != nil {
		return models.PayoutRequest{}, err
	}
	if account.Balance-pending < amountMinor {
		return models.PayoutRequest{}, ErrInsufficientFunds
	}

	payout := models.PayoutRequest{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		Amount:      amountMinor,
		Currency:    s.currency,
		BankDetails: bank,
		Status:      models.PayoutPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		return models.PayoutRequest{}, err
	}
	s.logger.Info("payout requested", "payout_id", payout.ID, "creator_id", creatorID, "amount", amountMinor)
	publish(ctx, s.publisher, s.logger, events.PayoutRequested, map[string]any{
		"payout_id":  payout.ID,
		"creator_id": creatorID,
		"email":      account.Email,
		"amount":     amountMinor,
		"currency":   s.currency,
	})
	return payout, nil
}

// Approve debits the creator's wallet and marks the request approved in one
// transaction.
func (s *PayoutService) Approve(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error) {
	payout, err := s.pendingPayout(ctx, payoutID)
	if err != nil {
		return models.PayoutRequest{}, err
	}
	at := s.now().UTC()
	res, err := s.wallet.Debit(ctx, DebitRequest{
		AccountID:   payout.CreatorID,
		AmountMinor: payout.Amount,
		SourceID:    "payout:" + payout.ID,
		Description: "payout",
		Metadata:    map[string]any{"payout_id": payout.ID, "approved_by": adminID},
		Finalize: func(tx *sqlx.Tx) error {
			if err := s.review(ctx, tx, payout.ID, models.PayoutApproved, adminID, at); err != nil {
				return err
			}
			return s.audit.Log(ctx, tx, adminID, "payout.approve", "payout_request", payout.ID, auditData(map[string]any{
				"creator_id": payout.CreatorID,
				"amount":     payout.Amount,
			}))
		},
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}
	if res.Duplicate {
		return models.PayoutRequest{}, ErrPayoutNotPending
	}
	payout.Status = models.PayoutApproved
	payout.ReviewedBy = &adminID
	payout.ReviewedAt = &at
	s.logger.Info("payout approved", "payout_id", payout.ID, "admin_id", adminID, "amount", payout.Amount)
	publish(ctx, s.publisher, s.logger, events.PayoutApproved, map[string]any{
		"payout_id":  payout.ID,
		"creator_id": payout.CreatorID,
		"amount":     payout.Amount,
		"currency":   payout.Currency,
	})
	return payout, nil
}

func (s *PayoutService) Reject(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error) {
	payout, err := s.pendingPayout(ctx, payoutID)
	if err != nil {
		return models.PayoutRequest{}, err
	}
	at := s.now().UTC()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.review(ctx, tx, payout.ID, models.PayoutRejected, adminID, at); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, adminID, "payout.reject", "payout_request", payout.ID, auditData(map[string]any{
			"creator_id": payout.CreatorID,
			"amount":     payout.Amount,
		}))
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}
	payout.Status = models.PayoutRejected
	payout.ReviewedBy = &adminID
	payout.ReviewedAt = &at
	s.logger.Info("payout rejected", "payout_id", payout.ID, "admin_id", adminID)
	publish(ctx, s.publisher, s.logger, events.PayoutRejected, map[string]any{
		"payout_id":  payout.ID,
		"creator_id": payout.CreatorID,
		"amount":     payout.Amount,
	})
	return payout, nil
}

func (s *PayoutService) List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error) {
	payouts, err := s.payouts.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	if payouts == nil {
		payouts = []models.PayoutRequest{}
	}
	return payouts, nil
}

func (s *PayoutService) ListForCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error) {
	payouts, err := s.payouts.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if payouts == nil {
		payouts = []models.PayoutRequest{}
	}
	return payouts, nil
}

func (s *PayoutService) pendingPayout(ctx context.Context, payoutID string) (models.PayoutRequest, error) {
	payout, err := s.payouts.Get(ctx, payoutID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PayoutRequest{}, ErrPayoutNotFound
		}
		return models.PayoutRequest{}, err
	}
	if payout.Status != models.PayoutPending {
		return models.PayoutRequest{}, ErrPayoutNotPending
	}
	return payout, nil
}

func (s *PayoutService) review(ctx context.Context, tx store.Execer, id, status, adminID string, at time.Time) error {
	rows, err := s.payouts.Review(ctx, tx, id, status, adminID, at)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPayoutNotPending
	}
	return nil
}

func auditData(data map[string]any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(raw)
}
