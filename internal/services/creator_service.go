package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"creatorpay/internal/db"
	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/store"

	"github.com/jmoiron/sqlx"
)

const (
	VerifyApprove = "approve"
	VerifyReject  = "reject"
)

type CreatorAccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	SetCreatorStatus(ctx context.Context, tx store.Execer, accountID, status string) (int64, error)
	Delete(ctx context.Context, tx store.Execer, accountID string) (int64, error)
	ListCreatorsByStatus(ctx context.Context, status string) ([]models.Account, error)
}

type ProfileDeleter interface {
	Delete(ctx context.Context, tx store.Execer, accountID string) error
}

type TierDeleter interface {
	DeleteByCreator(ctx context.Context, tx store.Execer, creatorID string) error
}

type ResourceDeleter interface {
	DeleteByOwner(ctx context.Context, tx store.Execer, ownerID string) error
}

// CreatorService runs the admin review of creator sign-ups.
type CreatorService struct {
	txRunner  db.TxRunner
	accounts  CreatorAccountStore
	profiles  ProfileDeleter
	tiers     TierDeleter
	resources ResourceDeleter
	audit     AuditStore
	publisher EventPublisher
	logger    *slog.Logger
}

func NewCreatorService(txRunner db.TxRunner, accounts CreatorAccountStore, profiles ProfileDeleter, tiers TierDeleter, resources ResourceDeleter, audit AuditStore, publisher EventPublisher, logger *slog.Logger) *CreatorService {
	return &CreatorService{
		txRunner:  txRunner,
		accounts:  accounts,
		profiles:  profiles,
		tiers:     tiers,
		resources: resources,
		audit:     audit,
		publisher: publisher,
		logger:    orDiscard(logger),
	}
}

type VerifyCreatorRequest struct {
	CallerID  string
	AdminUID  string
	CreatorID string
	Action    string
}

// Verify approves a creator, or rejects one by deleting the account and
// everything it published. Rejection refuses accounts with wallet or
// subscription history.
func (s *CreatorService) Verify(ctx context.Context, req VerifyCreatorRequest) error {
	if req.AdminUID != req.CallerID {
		s.logger.Warn("verify-creator admin mismatch", "security", true, "caller_id", req.CallerID, "admin_uid", req.AdminUID)
		return ErrAdminMismatch
	}
	if req.Action != VerifyApprove && req.Action != VerifyReject {
		return ErrInvalidAction
	}
	creator, err := s.accounts.GetByID(ctx, req.CreatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCreatorNotFound
		}
		return err
	}
	if creator.Role != models.RoleCreator {
		return ErrCreatorNotFound
	}

	if req.Action == VerifyApprove {
		return s.approve(ctx, req.CallerID, creator)
	}
	return s.reject(ctx, req.CallerID, creator)
}

func (s *CreatorService) approve(ctx context.Context, adminID string, creator models.Account) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.accounts.SetCreatorStatus(ctx, tx, creator.ID, models.CreatorStatusApproved)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrCreatorNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "creator.approve", "account", creator.ID, auditData(map[string]any{
			"email": creator.Email,
		}))
	})
	if err != nil {
		return err
	}
	s.logger.Info("creator approved", "creator_id", creator.ID, "admin_id", adminID)
	publish(ctx, s.publisher, s.logger, events.CreatorApproved, map[string]any{
		"creator_id":   creator.ID,
		"email":        creator.Email,
		"display_name": creator.DisplayName,
	})
	return nil
}

func (s *CreatorService) reject(ctx context.Context, adminID string, creator models.Account) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.resources.DeleteByOwner(ctx, tx, creator.ID); err != nil {
			return err
		}
		if err := s.tiers.DeleteByCreator(ctx, tx, creator.ID); err != nil {
			return err
		}
		if err := s.profiles.Delete(ctx, tx, creator.ID); err != nil {
			return err
		}
		rows, err := s.accounts.Delete(ctx, tx, creator.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrCreatorNotFound
		}
		return s.audit.Log(ctx, tx, adminID, "creator.reject", "account", creator.ID, auditData(map[string]any{
			"email": creator.Email,
		}))
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrCreatorHasHistory, creator.ID)
		}
		return err
	}
	s.logger.Info("creator rejected and removed", "creator_id", creator.ID, "admin_id", adminID)
	publish(ctx, s.publisher, s.logger, events.CreatorRejected, map[string]any{
		"email":        creator.Email,
		"display_name": creator.DisplayName,
	})
	return nil
}

func (s *CreatorService) ListPending(ctx context.Context) ([]models.Account, error) {
	creators, err := s.accounts.ListCreatorsByStatus(ctx, models.CreatorStatusPending)
	if err != nil {
		return nil, err
	}
	if creators == nil {
		creators = []models.Account{}
	}
	return creators, nil
}
