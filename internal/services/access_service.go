package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"creatorpay/internal/models"
)

const (
	ReasonCreator              = "creator"
	ReasonPublic               = "public"
	ReasonSubscriber           = "subscriber"
	ReasonSubscriptionRequired = "subscription_required"
	ReasonPurchased            = "purchased"
	ReasonPurchaseRequired     = "purchase_required"
)

type AccessSubscriptionStore interface {
	HasAccess(ctx context.Context, fanID, creatorID string, now time.Time) (bool, error)
}

type PurchaseLookup interface {
	Exists(ctx context.Context, viewerID, resourceID string) (bool, error)
}

type ResourceLookup interface {
	Get(ctx context.Context, id string) (models.Resource, error)
}

type AccessDecision struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// AccessService decides whether a viewer may open a protected resource. It
// reads current state on every call.
type AccessService struct {
	resources     ResourceLookup
	subscriptions AccessSubscriptionStore
	purchases     PurchaseLookup
	now           func() time.Time
}

func NewAccessService(resources ResourceLookup, subscriptions AccessSubscriptionStore, purchases PurchaseLookup) *AccessService {
	return &AccessService{
		resources:     resources,
		subscriptions: subscriptions,
		purchases:     purchases,
		now:           time.Now,
	}
}

// ResolveAccess evaluates, in order: ownership, public access, subscription
// and purchase. An empty viewerID is an anonymous visitor.
func (s *AccessService) ResolveAccess(ctx context.Context, viewerID string, resource models.Resource) (AccessDecision, error) {
	if viewerID != "" && viewerID == resource.OwnerID {
		return AccessDecision{Granted: true, Reason: ReasonCreator}, nil
	}
	switch resource.AccessType {
	case models.AccessPublic:
		return AccessDecision{Granted: true, Reason: ReasonPublic}, nil
	case models.AccessSubscribers:
		if viewerID == "" {
			return AccessDecision{Reason: ReasonSubscriptionRequired}, nil
		}
		ok, err := s.subscriptions.HasAccess(ctx, viewerID, resource.OwnerID, s.now().UTC())
		if err != nil {
			return AccessDecision{}, err
		}
		if ok {
			return AccessDecision{Granted: true, Reason: ReasonSubscriber}, nil
		}
		return AccessDecision{Reason: ReasonSubscriptionRequired}, nil
	case models.AccessPaid:
		if viewerID == "" {
			return AccessDecision{Reason: ReasonPurchaseRequired}, nil
		}
		ok, err := s.purchases.Exists(ctx, viewerID, resource.ID)
		if err != nil {
			return AccessDecision{}, err
		}
		if ok {
			return AccessDecision{Granted: true, Reason: ReasonPurchased}, nil
		}
		return AccessDecision{Reason: ReasonPurchaseRequired}, nil
	default:
		return AccessDecision{}, ErrUnknownAccessType
	}
}

func (s *AccessService) ResolveByID(ctx context.Context, viewerID, resourceID string) (AccessDecision, error) {
	resource, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessDecision{}, ErrResourceNotFound
		}
		return AccessDecision{}, err
	}
	return s.ResolveAccess(ctx, viewerID, resource)
}
