package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"creatorpay/internal/lock"
	"creatorpay/internal/money"
	"creatorpay/internal/square"

	"github.com/shopspring/decimal"
)

const (
	planLockTTL       = 30 * time.Second
	planWaitAttempts  = 5
	planWaitInterval  = 400 * time.Millisecond
	planLockKeyPrefix = "plan:"
)

type PlanCatalog interface {
	SearchCatalogPlan(ctx context.Context, name string) (string, bool, error)
	UpsertPlan(ctx context.Context, in square.PlanInput, idempotencyKey string) (string, error)
}

type PlanProvisioner struct {
	catalog      PlanCatalog
	locker       lock.Locker
	currency     string
	lockTTL      time.Duration
	waitAttempts int
	waitInterval time.Duration
	logger       *slog.Logger
}

func NewPlanProvisioner(catalog PlanCatalog, locker lock.Locker, currency string, logger *slog.Logger) *PlanProvisioner {
	return &PlanProvisioner{
		catalog:      catalog,
		locker:       locker,
		currency:     currency,
		lockTTL:      planLockTTL,
		waitAttempts: planWaitAttempts,
		waitInterval: planWaitInterval,
		logger:       orDiscard(logger),
	}
}

// PlanName is the catalog name for a tier at a given price.
func PlanName(creatorID, tierName string, priceMinor int64) string {
	return creatorID + ":" + tierName + ":" + strconv.FormatInt(priceMinor, 10)
}

// PlanIdempotencyKey is stable for the same creator, tier and price, so a
// retried create cannot produce a second plan.
func PlanIdempotencyKey(creatorID, tierName string, priceMinor int64) string {
	sum := sha256.Sum256([]byte(creatorID + "\x00" + tierName + "\x00" + strconv.FormatInt(priceMinor, 10)))
	return hex.EncodeToString(sum[:])
}

// GetOrCreatePlan returns the plan variation id billing tierName monthly at
// price, creating the plan when the catalog has none. Concurrent callers for
// the same tier are serialized by a lock; losers wait and search again.
func (p *PlanProvisioner) GetOrCreatePlan(ctx context.Context, creatorID, tierName string, price decimal.Decimal) (string, error) {
	if !price.IsPositive() {
		return "", fmt.Errorf("%w: price must be positive", ErrPlanProvisioning)
	}
	priceMinor := money.ToMinor(price)
	name := PlanName(creatorID, tierName, priceMinor)

	if id, found, err := p.search(ctx, name); err != nil || found {
		return id, err
	}

	lockKey := planLockKeyPrefix + creatorID + ":" + tierName
	for attempt := 0; ; attempt++ {
		token, ok, err := p.locker.Acquire(ctx, lockKey, p.lockTTL)
		if err != nil {
			return "", fmt.Errorf("%w: acquire lock: %w", ErrPlanProvisioning, err)
		}
		if ok {
			return p.createLocked(ctx, lockKey, token, creatorID, tierName, name, priceMinor)
		}
		if attempt >= p.waitAttempts {
			return "", fmt.Errorf("%w: provisioning of %s still in progress", ErrPlanProvisioning, name)
		}
		p.logger.Info("plan provisioning in progress, waiting", "plan", name, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.waitInterval):
		}
		if id, found, err := p.search(ctx, name); err != nil || found {
			return id, err
		}
	}
}

func (p *PlanProvisioner) createLocked(ctx context.Context, lockKey, token, creatorID, tierName, name string, priceMinor int64) (string, error) {
	defer func() {
		if err := p.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			p.logger.Warn("plan lock release failed", "key", lockKey, "error", err)
		}
	}()

	// Another holder may have finished between our search and the lock.
	if id, found, err := p.search(ctx, name); err != nil || found {
		return id, err
	}
	id, err := p.catalog.UpsertPlan(ctx, square.PlanInput{
		Name:       name,
		PriceMinor: priceMinor,
		Currency:   p.currency,
	}, PlanIdempotencyKey(creatorID, tierName, priceMinor))
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrPlanProvisioning, name, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: create %s returned no variation id", ErrPlanProvisioning, name)
	}
	p.logger.Info("subscription plan created", "plan", name, "variation_id", id)
	return id, nil
}

func (p *PlanProvisioner) search(ctx context.Context, name string) (string, bool, error) {
	id, found, err := p.catalog.SearchCatalogPlan(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("%w: search %s: %w", ErrPlanProvisioning, name, err)
	}
	if found && id == "" {
		return "", false, fmt.Errorf("%w: plan %s has no variation", ErrPlanProvisioning, name)
	}
	return id, found, nil
}
