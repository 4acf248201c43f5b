// Package app wires configuration, infrastructure and services into the
// object graph shared by the HTTP server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creatorpay/internal/config"
	"creatorpay/internal/db"
	"creatorpay/internal/events"
	"creatorpay/internal/handlers"
	"creatorpay/internal/jobs"
	"creatorpay/internal/lock"
	"creatorpay/internal/services"
	"creatorpay/internal/square"
	"creatorpay/internal/store"
	"creatorpay/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "creatorpay:lock:"

type App struct {
	Config config.Config
	Logger *slog.Logger
	DB     *sqlx.DB
	Hub    *websocket.Hub

	Accounts *store.AccountStore
	Audit    *store.AuditStore
	Ledger   *store.WalletStore

	Wallet        *services.WalletService
	Subscriptions *services.SubscriptionService
	Jobs          *jobs.Jobs

	handlerDeps handlers.Deps
	closers     []func()
}

// New connects to every backing service. Redis and RabbitMQ are optional:
// without them plan locks are process-local and events are only logged.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: database, Hub: websocket.NewHub()}
	a.closers = append(a.closers, func() { database.Close() })

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher := a.newPublisher()

	txRunner := db.NewTxRunner(database)
	accounts := store.NewAccountStore(database)
	profiles := store.NewCreatorProfileStore(database)
	tiers := store.NewTierStore(database)
	subscriptions := store.NewSubscriptionStore(database)
	ledger := store.NewWalletStore(database)
	audit := store.NewAuditStore(database)
	coupons := store.NewCouponStore(database)
	payouts := store.NewPayoutStore(database)
	resources := store.NewResourceStore(database)
	purchases := store.NewPurchaseStore(database)
	a.Accounts, a.Audit, a.Ledger = accounts, audit, ledger

	gateway := square.NewClient(square.Config{
		BaseURL:     cfg.SquareBaseURL,
		AccessToken: cfg.SquareAccessToken,
		Version:     cfg.SquareVersion,
		LocationID:  cfg.SquareLocationID,
	}, logger)

	wallet := services.NewWalletService(txRunner, accounts, ledger, a.Hub, publisher, cfg.CommissionPercent, cfg.Currency, logger)
	plans := services.NewPlanProvisioner(gateway, locker, cfg.Currency, logger)
	subscriptionService := services.NewSubscriptionService(tiers, accounts, subscriptions, gateway, plans, publisher, logger)
	couponService := services.NewCouponService(coupons, logger)
	webhooks := services.NewWebhookService(services.WebhookConfig{
		SignatureKey:    cfg.SquareWebhookSignatureKey,
		NotificationURL: cfg.SquareWebhookURL,
		Production:      cfg.IsProduction(),
	}, subscriptions, wallet, publisher, logger)
	a.Wallet, a.Subscriptions = wallet, subscriptionService
	a.Jobs = jobs.NewJobs(wallet, subscriptionService, publisher, logger)

	a.handlerDeps = handlers.Deps{
		TxRunner:      txRunner,
		Accounts:      accounts,
		Profiles:      profiles,
		Ledger:        ledger,
		Audit:         audit,
		Content:       services.NewContentService(accounts, tiers, resources, logger),
		Subscriptions: subscriptionService,
		Purchases:     services.NewPurchaseService(txRunner, resources, purchases, gateway, couponService, wallet, publisher, cfg.Currency, logger),
		Access:        services.NewAccessService(resources, subscriptions, purchases),
		Coupons:       couponService,
		Payouts:       services.NewPayoutService(txRunner, payouts, accounts, wallet, audit, publisher, cfg.Currency, logger),
		Creators:      services.NewCreatorService(txRunner, accounts, profiles, tiers, resources, audit, publisher, logger),
		Wallet:        wallet,
		Webhooks:      webhooks,
		Hub:           a.Hub,
	}
	return a, nil
}

func (a *App) Handler() *handlers.Handler {
	return handlers.New(a.Config, a.handlerDeps, a.Logger)
}

func (a *App) Scheduler() *jobs.Scheduler {
	return jobs.NewScheduler(a.Jobs, a.Logger, jobs.Schedules{
		Reconcile: a.Config.ReconcileSchedule,
		Expiry:    a.Config.ExpirySchedule,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	if strings.TrimSpace(a.Config.RedisURL) == "" {
		a.Logger.Warn("redis url missing; plan provisioning locks are process-local", "env", "REDIS_URL")
		return lock.NewMemoryLocker(), nil
	}
	options, err := redis.ParseURL(a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.closers = append(a.closers, func() { client.Close() })
	a.Logger.Info("redis connected")
	return lock.NewRedisLocker(client, lockPrefix), nil
}

func (a *App) newPublisher() events.Publisher {
	if strings.TrimSpace(a.Config.RabbitMQURL) == "" {
		a.Logger.Warn("rabbitmq url missing; events are logged only", "env", "RABBITMQ_URL")
		return events.NewLogPublisher(a.Logger)
	}
	publisher, err := events.NewRabbitPublisher(a.Config.RabbitMQURL, a.Config.EventsExchange, a.Logger)
	if err != nil {
		a.Logger.Warn("rabbitmq unavailable; events are logged only", "error", err)
		return events.NewLogPublisher(a.Logger)
	}
	a.closers = append(a.closers, publisher.Close)
	return publisher
}
