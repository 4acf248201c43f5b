package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/square"

	"github.com/shopspring/decimal"
)

type stubTierLookup struct {
	getFn       func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error)
	setPlanIDFn func(ctx context.Context, tierID, planID string) error
}

func (s stubTierLookup) GetByCreatorAndName(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) {
	return s.getFn(ctx, creatorID, name)
}

func (s stubTierLookup) SetPlanID(ctx context.Context, tierID, planID string) error {
	if s.setPlanIDFn == nil {
		return nil
	}
	return s.setPlanIDFn(ctx, tierID, planID)
}

type stubCustomerAccounts struct {
	getByIDFn     func(ctx context.Context, accountID string) (models.Account, error)
	setCustomerFn func(ctx context.Context, accountID, customerID string) error
}

func (s stubCustomerAccounts) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{ID: accountID, Email: accountID + "@example.com"}, nil
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubCustomerAccounts) SetPaymentCustomerID(ctx context.Context, accountID, customerID string) error {
	if s.setCustomerFn == nil {
		return nil
	}
	return s.setCustomerFn(ctx, accountID, customerID)
}

type stubSubscriptionStore struct {
	createFn          func(ctx context.Context, sub models.Subscription) error
	getByExternalIDFn func(ctx context.Context, externalID string) (models.Subscription, error)
	listByFanFn       func(ctx context.Context, fanID string) ([]models.Subscription, error)
	markCancelFn      func(ctx context.Context, id string, at time.Time) error
	markExpiringFn    func(ctx context.Context, now, cutoff time.Time) (int64, error)
	markExpiredFn     func(ctx context.Context, now time.Time) (int64, error)
}

func (s stubSubscriptionStore) Create(ctx context.Context, sub models.Subscription) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, sub)
}

func (s stubSubscriptionStore) GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error) {
	if s.getByExternalIDFn == nil {
		return models.Subscription{}, sql.ErrNoRows
	}
	return s.getByExternalIDFn(ctx, externalID)
}

func (s stubSubscriptionStore) ListByFan(ctx context.Context, fanID string) ([]models.Subscription, error) {
	if s.listByFanFn == nil {
		return nil, nil
	}
	return s.listByFanFn(ctx, fanID)
}

func (s stubSubscriptionStore) MarkCancelRequested(ctx context.Context, id string, at time.Time) error {
	if s.markCancelFn == nil {
		return nil
	}
	return s.markCancelFn(ctx, id, at)
}

func (s stubSubscriptionStore) MarkExpiring(ctx context.Context, now, cutoff time.Time) (int64, error) {
	if s.markExpiringFn == nil {
		return 0, nil
	}
	return s.markExpiringFn(ctx, now, cutoff)
}

func (s stubSubscriptionStore) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	if s.markExpiredFn == nil {
		return 0, nil
	}
	return s.markExpiredFn(ctx, now)
}

// countingGateway records every processor call.
type countingGateway struct {
	calls       []string
	customerErr error
	cardErr     error
	subErr      error
	cancelErr   error
}

func (g *countingGateway) CreateCustomer(ctx context.Context, in square.CustomerInput) (string, error) {
	g.calls = append(g.calls, "customer")
	return "cust-1", g.customerErr
}

func (g *countingGateway) CreateCard(ctx context.Context, in square.CardInput) (string, error) {
	g.calls = append(g.calls, "card:"+in.CustomerID)
	return "card-1", g.cardErr
}

func (g *countingGateway) CreateSubscription(ctx context.Context, in square.SubscriptionInput, key string) (string, string, error) {
	g.calls = append(g.calls, "subscription:"+in.PlanVariationID)
	if g.subErr != nil {
		return "", "", g.subErr
	}
	return "sq-sub-1", "PENDING", nil
}

func (g *countingGateway) CancelSubscription(ctx context.Context, id string) (string, error) {
	g.calls = append(g.calls, "cancel:"+id)
	if g.cancelErr != nil {
		return "", g.cancelErr
	}
	return "ACTIVE", nil
}

type stubPlanResolver struct {
	calls int
	id    string
	err   error
}

func (s *stubPlanResolver) GetOrCreatePlan(ctx context.Context, creatorID, tierName string, price decimal.Decimal) (string, error) {
	s.calls++
	return s.id, s.err
}

func goldTier() models.SubscriptionTier {
	return models.SubscriptionTier{ID: "tier-1", CreatorID: "creator-1", Name: "gold", Price: decimal.RequireFromString("9.99")}
}

func validSubscribe() SubscribeRequest {
	return SubscribeRequest{
		FanID:         "fan-1",
		CreatorID:     "creator-1",
		TierName:      "gold",
		ProposedPrice: decimal.RequireFromString("9.99"),
		SourceID:      "cnon:card-nonce-ok",
	}
}

func TestSubscribeHappyPath(t *testing.T) {
	gateway := &countingGateway{}
	plans := &stubPlanResolver{id: "plan-var-1"}
	publisher := &recordingPublisher{}
	var cachedPlan, storedCustomer string
	var created models.Subscription
	svc := NewSubscriptionService(
		stubTierLookup{
			getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) { return goldTier(), nil },
			setPlanIDFn: func(ctx context.Context, tierID, planID string) error {
				cachedPlan = planID
				return nil
			},
		},
		stubCustomerAccounts{setCustomerFn: func(ctx context.Context, accountID, customerID string) error {
			storedCustomer = customerID
			return nil
		}},
		stubSubscriptionStore{createFn: func(ctx context.Context, sub models.Subscription) error {
			created = sub
			return nil
		}},
		gateway, plans, publisher, discardLogger(),
	)

	res, err := svc.Subscribe(context.Background(), validSubscribe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SubscriptionID != "sq-sub-1" || res.Status != "PENDING" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if storedCustomer != "cust-1" || cachedPlan != "plan-var-1" {
		t.Fatalf("expected customer and plan to be persisted, got %q %q", storedCustomer, cachedPlan)
	}
	if created.Status != models.SubscriptionPending || created.ExpiresAt != nil || created.ExternalID != "sq-sub-1" {
		t.Fatalf("unexpected local subscription: %+v", created)
	}
	want := []string{"customer", "card:cust-1", "subscription:plan-var-1"}
	if len(gateway.calls) != len(want) {
		t.Fatalf("unexpected calls %v", gateway.calls)
	}
	for i := range want {
		if gateway.calls[i] != want[i] {
			t.Fatalf("call %d = %s, want %s", i, gateway.calls[i], want[i])
		}
	}
	if types := publisher.types(); len(types) != 1 || types[0] != events.SubscriptionCreated {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestSubscribeReusesCustomerAndPlan(t *testing.T) {
	gateway := &countingGateway{}
	plans := &stubPlanResolver{id: "unused"}
	tier := goldTier()
	planID := "cached-plan"
	tier.PlanID = &planID
	customer := "existing-cust"
	svc := NewSubscriptionService(
		stubTierLookup{getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) { return tier, nil }},
		stubCustomerAccounts{getByIDFn: func(ctx context.Context, accountID string) (models.Account, error) {
			return models.Account{ID: accountID, PaymentCustomerID: &customer}, nil
		}},
		stubSubscriptionStore{}, gateway, plans, nil, discardLogger(),
	)
	if _, err := svc.Subscribe(context.Background(), validSubscribe()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plans.calls != 0 {
		t.Fatal("expected cached plan to be used")
	}
	if gateway.calls[0] != "card:existing-cust" {
		t.Fatalf("expected stored customer to be reused, got %v", gateway.calls)
	}
}

func TestSubscribePriceMismatchMakesNoUpstreamCalls(t *testing.T) {
	cases := []string{"5.00", "10.01", "9.97"}
	for _, proposed := range cases {
		gateway := &countingGateway{}
		svc := NewSubscriptionService(
			stubTierLookup{getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) { return goldTier(), nil }},
			stubCustomerAccounts{}, stubSubscriptionStore{}, gateway, &stubPlanResolver{}, nil, discardLogger(),
		)
		req := validSubscribe()
		req.ProposedPrice = decimal.RequireFromString(proposed)
		if _, err := svc.Subscribe(context.Background(), req); !errors.Is(err, ErrPriceMismatch) {
			t.Fatalf("%s: expected price mismatch, got %v", proposed, err)
		}
		if len(gateway.calls) != 0 {
			t.Fatalf("%s: expected no upstream calls, got %v", proposed, gateway.calls)
		}
	}
}

func TestSubscribeAcceptsPriceWithinTolerance(t *testing.T) {
	svc := NewSubscriptionService(
		stubTierLookup{getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) { return goldTier(), nil }},
		stubCustomerAccounts{}, stubSubscriptionStore{}, &countingGateway{}, &stubPlanResolver{id: "p"}, nil, discardLogger(),
	)
	req := validSubscribe()
	req.ProposedPrice = decimal.RequireFromString("10.00")
	if _, err := svc.Subscribe(context.Background(), req); err != nil {
		t.Fatalf("expected a one cent gap to be accepted, got %v", err)
	}
}

func TestSubscribeUnknownTier(t *testing.T) {
	gateway := &countingGateway{}
	svc := NewSubscriptionService(
		stubTierLookup{getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) {
			return models.SubscriptionTier{}, sql.ErrNoRows
		}},
		stubCustomerAccounts{}, stubSubscriptionStore{}, gateway, &stubPlanResolver{}, nil, discardLogger(),
	)
	if _, err := svc.Subscribe(context.Background(), validSubscribe()); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected tier not found, got %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatal("expected no upstream calls")
	}
}

func TestSubscribeUpstreamFailureIsWrapped(t *testing.T) {
	gateway := &countingGateway{cardErr: &square.APIError{StatusCode: 402, Errors: []square.ErrorDetail{{Code: "CARD_DECLINED", Detail: "Card declined."}}}}
	recorded := false
	svc := NewSubscriptionService(
		stubTierLookup{getFn: func(ctx context.Context, creatorID, name string) (models.SubscriptionTier, error) { return goldTier(), nil }},
		stubCustomerAccounts{},
		stubSubscriptionStore{createFn: func(ctx context.Context, sub models.Subscription) error {
			recorded = true
			return nil
		}},
		gateway, &stubPlanResolver{id: "p"}, nil, discardLogger(),
	)
	_, err := svc.Subscribe(context.Background(), validSubscribe())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	var apiErr *square.APIError
	if !errors.As(err, &apiErr) || apiErr.Detail() != "Card declined." {
		t.Fatalf("expected processor detail to survive, got %v", err)
	}
	if recorded {
		t.Fatal("no local subscription expected on failure")
	}
}

func TestSubscribeRejectsSelfSubscription(t *testing.T) {
	svc := NewSubscriptionService(stubTierLookup{}, stubCustomerAccounts{}, stubSubscriptionStore{}, &countingGateway{}, &stubPlanResolver{}, nil, discardLogger())
	req := validSubscribe()
	req.FanID = req.CreatorID
	if _, err := svc.Subscribe(context.Background(), req); !errors.Is(err, ErrSelfSubscription) {
		t.Fatalf("expected self subscription error, got %v", err)
	}
}

func TestCancelByNonOwnerDoesNotCallUpstream(t *testing.T) {
	gateway := &countingGateway{}
	svc := NewSubscriptionService(stubTierLookup{}, stubCustomerAccounts{},
		stubSubscriptionStore{getByExternalIDFn: func(ctx context.Context, externalID string) (models.Subscription, error) {
			return models.Subscription{ID: "sub-1", FanID: "fan-1", ExternalID: externalID}, nil
		}},
		gateway, &stubPlanResolver{}, nil, discardLogger(),
	)
	if _, err := svc.Cancel(context.Background(), "fan-2", "sq-sub-1"); !errors.Is(err, ErrNotSubscriptionOwner) {
		t.Fatalf("expected ownership error, got %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatalf("expected no upstream calls, got %v", gateway.calls)
	}
}

func TestCancelByOwner(t *testing.T) {
	gateway := &countingGateway{}
	var marked string
	svc := NewSubscriptionService(stubTierLookup{}, stubCustomerAccounts{},
		stubSubscriptionStore{
			getByExternalIDFn: func(ctx context.Context, externalID string) (models.Subscription, error) {
				return models.Subscription{ID: "sub-1", FanID: "fan-1", ExternalID: externalID}, nil
			},
			markCancelFn: func(ctx context.Context, id string, at time.Time) error {
				marked = id
				return nil
			},
		},
		gateway, &stubPlanResolver{}, nil, discardLogger(),
	)
	status, err := svc.Cancel(context.Background(), "fan-1", "sq-sub-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "ACTIVE" || marked != "sub-1" {
		t.Fatalf("unexpected status %q marked %q", status, marked)
	}
	if len(gateway.calls) != 1 || gateway.calls[0] != "cancel:sq-sub-1" {
		t.Fatalf("expected exactly one cancel call, got %v", gateway.calls)
	}
}

func TestCancelUnknownSubscription(t *testing.T) {
	svc := NewSubscriptionService(stubTierLookup{}, stubCustomerAccounts{}, stubSubscriptionStore{}, &countingGateway{}, &stubPlanResolver{}, nil, discardLogger())
	if _, err := svc.Cancel(context.Background(), "fan-1", "missing"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepExpirationsUsesThreeDayWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotCutoff time.Time
	publisher := &recordingPublisher{}
	svc := NewSubscriptionService(stubTierLookup{}, stubCustomerAccounts{},
		stubSubscriptionStore{
			markExpiringFn: func(ctx context.Context, n, cutoff time.Time) (int64, error) {
				gotCutoff = cutoff
				return 2, nil
			},
			markExpiredFn: func(ctx context.Context, n time.Time) (int64, error) { return 1, nil },
		},
		&countingGateway{}, &stubPlanResolver{}, publisher, discardLogger(),
	)
	svc.now = func() time.Time { return now }

	res, err := svc.SweepExpirations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Expiring != 2 || res.Expired != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !gotCutoff.Equal(now.Add(72 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", gotCutoff)
	}
	if len(publisher.events) != 1 {
		t.Fatal("expected sweep event")
	}
}
