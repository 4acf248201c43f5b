package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creatorpay/internal/auth"
	"creatorpay/internal/db"
	"creatorpay/internal/models"
	"creatorpay/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var errAdminExists = errors.New("an admin account already exists; pass --force to add another")

type adminAccounts interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type auditLogger interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type adminInput struct {
	Email    string
	Password string
	Name     string
	Currency string
	Force    bool
}

func createAdminCmd() *cobra.Command {
	var in adminInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the platform administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			database, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer database.Close()

			in.Currency = cfg.Currency
			account, err := createAdmin(ctx, db.NewTxRunner(database), store.NewAccountStore(database), store.NewAuditStore(database), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", account.Email, account.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password, at least 8 characters (required)")
	cmd.Flags().StringVar(&in.Name, "name", "Administrator", "display name")
	cmd.Flags().BoolVar(&in.Force, "force", false, "create even if an admin already exists")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func createAdmin(ctx context.Context, tx txRunner, accounts adminAccounts, audit auditLogger, in adminInput) (models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return models.Account{}, fmt.Errorf("invalid email %q", in.Email)
	}
	if len(in.Password) < 8 {
		return models.Account{}, errors.New("password must be at least 8 characters")
	}
	if !in.Force {
		exists, err := accounts.HasAnyAdmin(ctx)
		if err != nil {
			return models.Account{}, fmt.Errorf("check admins: %w", err)
		}
		if exists {
			return models.Account{}, errAdminExists
		}
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.Account{}, err
	}
	account := models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		DisplayName:  strings.TrimSpace(in.Name),
		Currency:     in.Currency,
	}
	err = tx.WithTx(ctx, func(t *sqlx.Tx) error {
		if err := accounts.Create(ctx, t, account); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("email %s is already registered", email)
			}
			return err
		}
		return audit.Log(ctx, t, account.ID, "admin.create", "account", account.ID, "")
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}
