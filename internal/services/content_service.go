package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"creatorpay/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const maxTierNameLength = 60

type TierStore interface {
	ListByCreator(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error)
	Upsert(ctx context.Context, tier models.SubscriptionTier) (models.SubscriptionTier, error)
}

type ResourceStore interface {
	Create(ctx context.Context, resource models.Resource) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Resource, error)
}

// ContentService manages what approved creators sell: subscription tiers and
// protected resources.
type ContentService struct {
	accounts  AccountReader
	tiers     TierStore
	resources ResourceStore
	logger    *slog.Logger
}

func NewContentService(accounts AccountReader, tiers TierStore, resources ResourceStore, logger *slog.Logger) *ContentService {
	return &ContentService{accounts: accounts, tiers: tiers, resources: resources, logger: orDiscard(logger)}
}

type TierInput struct {
	Name     string
	Price    decimal.Decimal
	Benefits []string
}

func (s *ContentService) SaveTier(ctx context.Context, creatorID string, in TierInput) (models.SubscriptionTier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxTierNameLength || strings.Contains(name, ":") {
		return models.SubscriptionTier{}, fmt.Errorf("%w: tier name", ErrInvalidRequest)
	}
	if !in.Price.IsPositive() || !in.Price.Equal(in.Price.Round(2)) {
		return models.SubscriptionTier{}, fmt.Errorf("%w: tier price", ErrInvalidAmount)
	}
	if err := s.requireApproved(ctx, creatorID); err != nil {
		return models.SubscriptionTier{}, err
	}
	benefits := make([]string, 0, len(in.Benefits))
	for _, b := range in.Benefits {
		if b = strings.TrimSpace(b); b != "" {
			benefits = append(benefits, b)
		}
	}
	tier, err := s.tiers.Upsert(ctx, models.SubscriptionTier{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Name:      name,
		Price:     in.Price,
		Benefits:  pq.StringArray(benefits),
	})
	if err != nil {
		return models.SubscriptionTier{}, err
	}
	s.logger.Info("tier saved", "creator_id", creatorID, "tier", name, "price", in.Price.StringFixed(2))
	return tier, nil
}

func (s *ContentService) ListTiers(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error) {
	tiers, err := s.tiers.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if tiers == nil {
		tiers = []models.SubscriptionTier{}
	}
	return tiers, nil
}

type ResourceInput struct {
	Kind       string
	Title      string
	AccessType string
	Price      *decimal.Decimal
}

func (s *ContentService) CreateResource(ctx context.Context, ownerID string, in ResourceInput) (models.Resource, error) {
	switch in.Kind {
	case models.ResourceStream, models.ResourceChat, models.ResourcePost:
	default:
		return models.Resource{}, fmt.Errorf("%w: kind", ErrInvalidRequest)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Resource{}, fmt.Errorf("%w: title", ErrInvalidRequest)
	}
	resource := models.Resource{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Kind:       in.Kind,
		Title:      title,
		AccessType: in.AccessType,
	}
	switch in.AccessType {
	case models.AccessPublic, models.AccessSubscribers:
		if in.Price != nil {
			return models.Resource{}, fmt.Errorf("%w: only paid resources carry a price", ErrInvalidRequest)
		}
	case models.AccessPaid:
		if in.Price == nil || !in.Price.IsPositive() {
			return models.Resource{}, fmt.Errorf("%w: paid resources need a price", ErrInvalidAmount)
		}
		resource.Price = decimal.NewNullDecimal(*in.Price)
	default:
		return models.Resource{}, ErrUnknownAccessType
	}
	if err := s.requireApproved(ctx, ownerID); err != nil {
		return models.Resource{}, err
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return models.Resource{}, err
	}
	s.logger.Info("resource created", "resource_id", resource.ID, "owner_id", ownerID, "access_type", in.AccessType)
	return resource, nil
}

func (s *ContentService) ListResources(ctx context.Context, ownerID string) ([]models.Resource, error) {
	resources, err := s.resources.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	return resources, nil
}

func (s *ContentService) requireApproved(ctx context.Context, creatorID string) error {
	account, err := s.accounts.GetByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	if account.Role != models.RoleCreator || account.CreatorStatus == nil || *account.CreatorStatus != models.CreatorStatusApproved {
		return ErrCreatorNotApproved
	}
	return nil
}
