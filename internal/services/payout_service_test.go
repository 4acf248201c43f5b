package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"creatorpay/internal/events"
	"creatorpay/internal/models"
	"creatorpay/internal/store"
)

type stubPayoutStore struct {
	createFn        func(ctx context.Context, payout models.PayoutRequest) error
	getFn           func(ctx context.Context, id string) (models.PayoutRequest, error)
	listFn          func(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error)
	listByCreatorFn func(ctx context.Context, creatorID string) ([]models.PayoutRequest, error)
	pendingTotalFn  func(ctx context.Context, creatorID string) (int64, error)
	reviewFn        func(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error)
}

func (s stubPayoutStore) Create(ctx context.Context, payout models.PayoutRequest) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, payout)
}

func (s stubPayoutStore) Get(ctx context.Context, id string) (models.PayoutRequest, error) {
	if s.getFn == nil {
		return models.PayoutRequest{}, sql.ErrNoRows
	}
	return s.getFn(ctx, id)
}

func (s stubPayoutStore) List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, status, limit, offset)
}

func (s stubPayoutStore) ListByCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error) {
	if s.listByCreatorFn == nil {
		return nil, nil
	}
	return s.listByCreatorFn(ctx, creatorID)
}

func (s stubPayoutStore) PendingTotal(ctx context.Context, creatorID string) (int64, error) {
	if s.pendingTotalFn == nil {
		return 0, nil
	}
	return s.pendingTotalFn(ctx, creatorID)
}

func (s stubPayoutStore) Review(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error) {
	if s.reviewFn == nil {
		return 1, nil
	}
	return s.reviewFn(ctx, tx, id, status, reviewerID, at)
}

type stubAccountReader struct {
	getByIDFn func(ctx context.Context, accountID string) (models.Account, error)
}

func (s stubAccountReader) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, accountID)
}

func usBank() models.BankDetails {
	return models.BankDetails{Country: "US", AccountHolder: "Ada Creator", RoutingNumber: "021000021", AccountNumber: "12345678"}
}

func accountWithBalance(balance int64) stubAccountReader {
	return stubAccountReader{getByIDFn: func(ctx context.Context, accountID string) (models.Account, error) {
		return models.Account{ID: accountID, Email: "creator@example.com", Balance: balance}, nil
	}}
}

func TestPayoutRequestChecksAvailableBalance(t *testing.T) {
	var created models.PayoutRequest
	svc := NewPayoutService(fakeTxRunner{},
		stubPayoutStore{
			pendingTotalFn: func(ctx context.Context, creatorID string) (int64, error) { return 300, nil },
			createFn: func(ctx context.Context, payout models.PayoutRequest) error {
				created = payout
				return nil
			},
		},
		accountWithBalance(1000), nil, stubAuditStore{}, nil, "USD", discardLogger())

	if _, err := svc.Request(context.Background(), "creator-1", 800, usBank()); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds with pending requests, got %v", err)
	}
	payout, err := svc.Request(context.Background(), "creator-1", 700, usBank())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout.Status != models.PayoutPending || created.ID != payout.ID || created.Currency != "USD" {
		t.Fatalf("unexpected payout %+v", created)
	}
}

func TestPayoutRequestValidatesBankDetails(t *testing.T) {
	svc := NewPayoutService(fakeTxRunner{}, stubPayoutStore{}, accountWithBalance(1000), nil, stubAuditStore{}, nil, "USD", discardLogger())
	bad := usBank()
	bad.RoutingNumber = "12345"
	if _, err := svc.Request(context.Background(), "creator-1", 100, bad); !errors.Is(err, ErrInvalidBankDetails) {
		t.Fatalf("expected invalid bank details, got %v", err)
	}
	if _, err := svc.Request(context.Background(), "creator-1", 0, usBank()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestPayoutApproveDebitsAndReviews(t *testing.T) {
	ledger := newMemLedger("creator-1")
	wallet := newTestWallet(ledger, nil, nil)
	if _, err := wallet.Credit(context.Background(), CreditRequest{AccountID: "creator-1", AmountMinor: 1000, SourceID: "inv-1"}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	var reviewed, audited string
	publisher := &recordingPublisher{}
	svc := NewPayoutService(ledger,
		stubPayoutStore{
			getFn: func(ctx context.Context, id string) (models.PayoutRequest, error) {
				return models.PayoutRequest{ID: id, CreatorID: "creator-1", Amount: 600, Currency: "USD", Status: models.PayoutPending}, nil
			},
			reviewFn: func(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error) {
				reviewed = status + ":" + reviewerID
				return 1, nil
			},
		},
		accountWithBalance(1000), wallet,
		stubAuditStore{logFn: func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
			audited = action
			return nil
		}},
		publisher, "USD", discardLogger())

	payout, err := svc.Approve(context.Background(), "admin-1", "payout-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payout.Status != models.PayoutApproved || reviewed != "approved:admin-1" || audited != "payout.approve" {
		t.Fatalf("unexpected outcome payout=%+v reviewed=%s audited=%s", payout, reviewed, audited)
	}
	if ledger.balance("creator-1") != 400 || ledger.ledgerSum("creator-1") != 400 {
		t.Fatalf("expected debit of 600, balance=%d", ledger.balance("creator-1"))
	}
	if types := publisher.types(); len(types) != 1 || types[0] != events.PayoutApproved {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestPayoutApproveRollsBackWhenAlreadyReviewed(t *testing.T) {
	ledger := newMemLedger("creator-1")
	wallet := newTestWallet(ledger, nil, nil)
	if _, err := wallet.Credit(context.Background(), CreditRequest{AccountID: "creator-1", AmountMinor: 1000, SourceID: "inv-1"}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	svc := NewPayoutService(ledger,
		stubPayoutStore{
			getFn: func(ctx context.Context, id string) (models.PayoutRequest, error) {
				return models.PayoutRequest{ID: id, CreatorID: "creator-1", Amount: 600, Status: models.PayoutPending}, nil
			},
			reviewFn: func(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error) {
				return 0, nil
			},
		},
		accountWithBalance(1000), wallet, stubAuditStore{}, nil, "USD", discardLogger())

	if _, err := svc.Approve(context.Background(), "admin-1", "payout-1"); !errors.Is(err, ErrPayoutNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
	if ledger.balance("creator-1") != 1000 || ledger.ledgerSum("creator-1") != 1000 {
		t.Fatal("debit must roll back with the review")
	}
}

func TestPayoutApproveInsufficientFunds(t *testing.T) {
	ledger := newMemLedger("creator-1")
	svc := NewPayoutService(ledger,
		stubPayoutStore{getFn: func(ctx context.Context, id string) (models.PayoutRequest, error) {
			return models.PayoutRequest{ID: id, CreatorID: "creator-1", Amount: 600, Status: models.PayoutPending}, nil
		}},
		accountWithBalance(0), newTestWallet(ledger, nil, nil), stubAuditStore{}, nil, "USD", discardLogger())
	if _, err := svc.Approve(context.Background(), "admin-1", "payout-1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestPayoutRejectAndLookupErrors(t *testing.T) {
	var reviewed string
	svc := NewPayoutService(fakeTxRunner{},
		stubPayoutStore{
			getFn: func(ctx context.Context, id string) (models.PayoutRequest, error) {
				switch id {
				case "done":
					return models.PayoutRequest{ID: id, Status: models.PayoutApproved}, nil
				case "payout-1":
					return models.PayoutRequest{ID: id, CreatorID: "creator-1", Amount: 100, Status: models.PayoutPending}, nil
				}
				return models.PayoutRequest{}, sql.ErrNoRows
			},
			reviewFn: func(ctx context.Context, tx store.Execer, id, status, reviewerID string, at time.Time) (int64, error) {
				reviewed = status
				return 1, nil
			},
		},
		accountWithBalance(0), nil, stubAuditStore{}, nil, "USD", discardLogger())

	payout, err := svc.Reject(context.Background(), "admin-1", "payout-1")
	if err != nil || payout.Status != models.PayoutRejected || reviewed != models.PayoutRejected {
		t.Fatalf("unexpected reject outcome %+v %v", payout, err)
	}
	if _, err := svc.Reject(context.Background(), "admin-1", "done"); !errors.Is(err, ErrPayoutNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
	if _, err := svc.Approve(context.Background(), "admin-1", "missing"); !errors.Is(err, ErrPayoutNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
