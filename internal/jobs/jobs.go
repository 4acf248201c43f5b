// Package jobs holds the background work the server runs on a schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/services"
)

const jobTimeout = 5 * time.Minute

type Reconciler interface {
	Reconcile(ctx context.Context) ([]models.BalanceDrift, error)
}

type ExpirySweeper interface {
	SweepExpirations(ctx context.Context) (services.SweepResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	wallet    Reconciler
	sweeper   ExpirySweeper
	publisher Publisher
	logger    *slog.Logger
}

func NewJobs(wallet Reconciler, sweeper ExpirySweeper, publisher Publisher, logger *slog.Logger) *Jobs {
	return &Jobs{wallet: wallet, sweeper: sweeper, publisher: publisher, logger: logger}
}

// ReconcileBalances compares every stored balance with its ledger and raises
// an event per drifting account. It never repairs balances.
func (j *Jobs) ReconcileBalances() {
	j.logger.Info("starting balance reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	drift, err := j.wallet.Reconcile(ctx)
	if err != nil {
		j.logger.Error("failed to reconcile balances", "error", err)
		return
	}
	for _, d := range drift {
		j.logger.Error("balance drift detected",
			"account_id", d.AccountID,
			"ledger_sum", d.LedgerSum,
			"account_balance", d.AccountBalance,
			"difference", d.Difference,
		)
		if j.publisher == nil {
			continue
		}
		if err := j.publisher.Publish(ctx, events.New(events.WalletDrift, d)); err != nil {
			j.logger.Warn("event publish failed", "event", events.WalletDrift, "error", err)
		}
	}

	j.logger.Info("balance reconciliation job finished", "drifting_accounts", len(drift))
}

// SweepExpirations moves lapsing subscriptions to expiring and lapsed ones to
// expired.
func (j *Jobs) SweepExpirations() {
	j.logger.Info("starting subscription expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.sweeper.SweepExpirations(ctx)
	if err != nil {
		j.logger.Error("failed to sweep subscription expirations", "error", err)
		return
	}

	j.logger.Info("subscription expiry job finished", "expiring", result.Expiring, "expired", result.Expired)
}
