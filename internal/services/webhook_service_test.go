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
	"creatorpay/internal/store"
)

const (
	testWebhookKey = "whsec-test"
	testWebhookURL = "https://api.example.com/webhooks/square"
)

// memSubscriptions is a tiny subscription table keyed by external id.
type memSubscriptions struct {
	byExternal map[string]*models.Subscription
	statusSets int
}

func newMemSubscriptions(subs ...models.Subscription) *memSubscriptions {
	m := &memSubscriptions{byExternal: map[string]*models.Subscription{}}
	for i := range subs {
		sub := subs[i]
		m.byExternal[sub.ExternalID] = &sub
	}
	return m
}

func (m *memSubscriptions) find(id string) *models.Subscription {
	for _, sub := range m.byExternal {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

func (m *memSubscriptions) GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error) {
	sub, ok := m.byExternal[externalID]
	if !ok {
		return models.Subscription{}, sql.ErrNoRows
	}
	return *sub, nil
}

func (m *memSubscriptions) Activate(ctx context.Context, tx store.Execer, id string, paidAt, expiresAt time.Time) error {
	sub := m.find(id)
	sub.Status = models.SubscriptionActive
	sub.LastPaymentAt = &paidAt
	sub.ExpiresAt = &expiresAt
	return nil
}

func (m *memSubscriptions) SetStatus(ctx context.Context, id, status string) error {
	m.statusSets++
	m.find(id).Status = status
	return nil
}

type stubCrediter struct {
	creditFn func(ctx context.Context, req CreditRequest) (CreditResult, error)
}

func (s stubCrediter) Credit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	return s.creditFn(ctx, req)
}

func invoicePaidBody(subscriptionID string) []byte {
	return []byte(`{"type":"invoice.payment_made","event_id":"evt-1","data":{"type":"invoice","id":"inv-1","object":{"invoice":{"id":"inv-1","subscription_id":"` + subscriptionID + `","payment_requests":[{"computed_amount_money":{"amount":999,"currency":"USD"},"total_completed_amount_money":{"amount":999,"currency":"USD"}}]}}}}`)
}

func signed(body []byte) string {
	return square.Signature(testWebhookKey, testWebhookURL, body)
}

func pendingSubscription() models.Subscription {
	return models.Subscription{ID: "sub-1", FanID: "fan-1", CreatorID: "creator-1", TierName: "gold", ExternalID: "sq-sub-1", Status: models.SubscriptionPending}
}

func newTestWebhook(subs WebhookSubscriptionStore, wallet Crediter, publisher EventPublisher) *WebhookService {
	return NewWebhookService(WebhookConfig{SignatureKey: testWebhookKey, NotificationURL: testWebhookURL}, subs, wallet, publisher, discardLogger())
}

func TestWebhookInvoicePaidCreditsAndActivates(t *testing.T) {
	subs := newMemSubscriptions(pendingSubscription())
	ledger := newMemLedger("creator-1")
	publisher := &recordingPublisher{}
	svc := newTestWebhook(subs, newTestWallet(ledger, nil, nil), publisher)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	body := invoicePaidBody("sq-sub-1")
	if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub := subs.byExternal["sq-sub-1"]
	if sub.Status != models.SubscriptionActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
	if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(now.Add(32*24*time.Hour)) {
		t.Fatalf("unexpected expiry %v", sub.ExpiresAt)
	}
	if ledger.balance("creator-1") != 799 || ledger.balance(models.PlatformAccountID) != 200 {
		t.Fatalf("unexpected balances creator=%d platform=%d", ledger.balance("creator-1"), ledger.balance(models.PlatformAccountID))
	}
	if types := publisher.types(); len(types) != 1 || types[0] != events.SubscriptionActivated {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestWebhookDuplicateDeliveryCreditsOnce(t *testing.T) {
	subs := newMemSubscriptions(pendingSubscription())
	ledger := newMemLedger("creator-1")
	svc := newTestWebhook(subs, newTestWallet(ledger, nil, nil), nil)
	body := invoicePaidBody("sq-sub-1")

	for i := 0; i < 3; i++ {
		if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if ledger.balance("creator-1") != 799 {
		t.Fatalf("expected a single credit, balance=%d", ledger.balance("creator-1"))
	}
	if ledger.ledgerSum("creator-1") != 799 {
		t.Fatalf("expected a single ledger entry, sum=%d", ledger.ledgerSum("creator-1"))
	}
}

func TestWebhookInvalidSignatureMutatesNothing(t *testing.T) {
	subs := newMemSubscriptions(pendingSubscription())
	credited := false
	svc := newTestWebhook(subs, stubCrediter{creditFn: func(ctx context.Context, req CreditRequest) (CreditResult, error) {
		credited = true
		return CreditResult{}, nil
	}}, nil)

	body := invoicePaidBody("sq-sub-1")
	err := svc.Handle(context.Background(), body, "bm90LXRoZS1zaWduYXR1cmU=")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if credited || subs.byExternal["sq-sub-1"].Status != models.SubscriptionPending {
		t.Fatal("invalid signature must not mutate state")
	}
}

func TestWebhookUnknownSubscriptionIsNoop(t *testing.T) {
	svc := newTestWebhook(newMemSubscriptions(), stubCrediter{creditFn: func(ctx context.Context, req CreditRequest) (CreditResult, error) {
		t.Fatal("credit must not be called")
		return CreditResult{}, nil
	}}, nil)
	body := invoicePaidBody("sq-unknown")
	if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestWebhookCancelledKeepsExpiry(t *testing.T) {
	expires := time.Now().Add(10 * 24 * time.Hour).UTC()
	sub := pendingSubscription()
	sub.Status = models.SubscriptionActive
	sub.ExpiresAt = &expires
	subs := newMemSubscriptions(sub)
	publisher := &recordingPublisher{}
	svc := newTestWebhook(subs, stubCrediter{}, publisher)

	body := []byte(`{"type":"subscription.updated","event_id":"evt-2","data":{"type":"subscription","id":"sq-sub-1","object":{"subscription":{"id":"sq-sub-1","status":"CANCELED"}}}}`)
	if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := subs.byExternal["sq-sub-1"]
	if got.Status != models.SubscriptionCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry must be untouched, got %v", got.ExpiresAt)
	}
	if types := publisher.types(); len(types) != 1 || types[0] != events.SubscriptionCancelled {
		t.Fatalf("unexpected events %v", types)
	}
}

func subscriptionUpdatedBody(status string) []byte {
	return []byte(`{"type":"subscription.updated","event_id":"evt-3","data":{"type":"subscription","id":"sq-sub-1","object":{"subscription":{"id":"sq-sub-1","status":"` + status + `"}}}}`)
}

func TestWebhookSubscriptionUpdatedStatuses(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(5 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	cases := []struct {
		name       string
		status     string
		expiresAt  *time.Time
		upstream   string
		wantStatus string
	}{
		{"active on pending stays pending", models.SubscriptionPending, nil, "ACTIVE", models.SubscriptionPending},
		{"active on expired stays expired", models.SubscriptionExpired, &past, "ACTIVE", models.SubscriptionExpired},
		{"active on lapsed cancellation stays cancelled", models.SubscriptionCancelled, &past, "ACTIVE", models.SubscriptionCancelled},
		{"active on cancellation without expiry stays cancelled", models.SubscriptionCancelled, nil, "ACTIVE", models.SubscriptionCancelled},
		{"active restores paid cancellation", models.SubscriptionCancelled, &future, "ACTIVE", models.SubscriptionActive},
		{"active on expiring keeps expiring", models.SubscriptionExpiring, &future, "ACTIVE", models.SubscriptionExpiring},
		{"paused is ignored", models.SubscriptionActive, &future, "PAUSED", models.SubscriptionActive},
		{"canceled on pending cancels", models.SubscriptionPending, nil, "CANCELED", models.SubscriptionCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := pendingSubscription()
			sub.Status = tc.status
			sub.ExpiresAt = tc.expiresAt
			subs := newMemSubscriptions(sub)
			svc := newTestWebhook(subs, stubCrediter{}, nil)
			svc.now = func() time.Time { return now }

			body := subscriptionUpdatedBody(tc.upstream)
			if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := subs.byExternal["sq-sub-1"]
			if got.Status != tc.wantStatus {
				t.Fatalf("expected %s, got %s", tc.wantStatus, got.Status)
			}
			if tc.expiresAt == nil && got.ExpiresAt != nil {
				t.Fatalf("status update must not grant paid time, got %v", got.ExpiresAt)
			}
		})
	}
}

func TestWebhookUnknownEventAccepted(t *testing.T) {
	svc := newTestWebhook(newMemSubscriptions(), stubCrediter{}, nil)
	body := []byte(`{"type":"payment.updated","data":{"object":{}}}`)
	if err := svc.Handle(context.Background(), body, signed(body)); err != nil {
		t.Fatalf("expected unknown event to be accepted, got %v", err)
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	svc := newTestWebhook(newMemSubscriptions(), stubCrediter{}, nil)
	body := []byte(`{not json`)
	if err := svc.Handle(context.Background(), body, signed(body)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestWebhookMissingKey(t *testing.T) {
	body := invoicePaidBody("sq-unknown")

	prod := NewWebhookService(WebhookConfig{Production: true}, newMemSubscriptions(), stubCrediter{}, nil, discardLogger())
	if err := prod.Handle(context.Background(), body, ""); !errors.Is(err, ErrWebhookNotConfigured) {
		t.Fatalf("expected not configured in production, got %v", err)
	}

	dev := NewWebhookService(WebhookConfig{}, newMemSubscriptions(), stubCrediter{}, nil, discardLogger())
	if err := dev.Handle(context.Background(), body, ""); err != nil {
		t.Fatalf("expected unverified pass-through outside production, got %v", err)
	}
}

func TestWebhookCreditFailurePropagates(t *testing.T) {
	subs := newMemSubscriptions(pendingSubscription())
	boom := errors.New("db down")
	svc := newTestWebhook(subs, stubCrediter{creditFn: func(ctx context.Context, req CreditRequest) (CreditResult, error) {
		if !req.ApplyPlatformSplit || req.SourceID != "inv-1" || req.AmountMinor != 999 {
			t.Fatalf("unexpected credit request %+v", req)
		}
		return CreditResult{}, boom
	}}, nil)
	body := invoicePaidBody("sq-sub-1")
	if err := svc.Handle(context.Background(), body, signed(body)); !errors.Is(err, boom) {
		t.Fatalf("expected credit error, got %v", err)
	}
	if subs.byExternal["sq-sub-1"].Status != models.SubscriptionPending {
		t.Fatal("subscription must stay pending when the credit fails")
	}
}
