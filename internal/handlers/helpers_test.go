package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"creatorpay/internal/auth"
	"creatorpay/internal/config"
	"creatorpay/internal/models"
	"creatorpay/internal/services"
	"creatorpay/internal/store"
	"creatorpay/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubAccountStore struct {
	createFn     func(ctx context.Context, tx store.Execer, account models.Account) error
	getByIDFn    func(ctx context.Context, accountID string) (models.Account, error)
	getByEmailFn func(ctx context.Context, email string) (models.Account, error)
	getRoleFn    func(ctx context.Context, userID string) (string, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, account models.Account) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, account)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	if s.getByEmailFn == nil {
		return models.Account{}, sql.ErrNoRows
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubAccountStore) GetRole(ctx context.Context, userID string) (string, error) {
	if s.getRoleFn == nil {
		return models.RoleFan, nil
	}
	return s.getRoleFn(ctx, userID)
}

type stubProfileStore struct {
	upsertFn func(ctx context.Context, tx store.Execer, profile models.CreatorProfile) error
}

func (s stubProfileStore) Upsert(ctx context.Context, tx store.Execer, profile models.CreatorProfile) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, tx, profile)
}

type stubLedger struct {
	listFn func(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error)
	sumFn  func(ctx context.Context, accountID string) (int64, error)
}

func (s stubLedger) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.WalletTransaction, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, accountID, limit, offset)
}

func (s stubLedger) SumByAccount(ctx context.Context, accountID string) (int64, error) {
	if s.sumFn == nil {
		return 0, nil
	}
	return s.sumFn(ctx, accountID)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubContentService struct {
	saveTierFn       func(ctx context.Context, creatorID string, in services.TierInput) (models.SubscriptionTier, error)
	listTiersFn      func(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error)
	createResourceFn func(ctx context.Context, ownerID string, in services.ResourceInput) (models.Resource, error)
}

func (s stubContentService) SaveTier(ctx context.Context, creatorID string, in services.TierInput) (models.SubscriptionTier, error) {
	if s.saveTierFn == nil {
		return models.SubscriptionTier{CreatorID: creatorID, Name: in.Name, Price: in.Price}, nil
	}
	return s.saveTierFn(ctx, creatorID, in)
}

func (s stubContentService) ListTiers(ctx context.Context, creatorID string) ([]models.SubscriptionTier, error) {
	if s.listTiersFn == nil {
		return []models.SubscriptionTier{}, nil
	}
	return s.listTiersFn(ctx, creatorID)
}

func (s stubContentService) CreateResource(ctx context.Context, ownerID string, in services.ResourceInput) (models.Resource, error) {
	if s.createResourceFn == nil {
		return models.Resource{OwnerID: ownerID, Kind: in.Kind, Title: in.Title, AccessType: in.AccessType}, nil
	}
	return s.createResourceFn(ctx, ownerID, in)
}

func (s stubContentService) ListResources(ctx context.Context, ownerID string) ([]models.Resource, error) {
	return []models.Resource{}, nil
}

type stubSubscriptionService struct {
	subscribeFn func(ctx context.Context, req services.SubscribeRequest) (services.SubscribeResult, error)
	cancelFn    func(ctx context.Context, callerID, externalID string) (string, error)
	listFn      func(ctx context.Context, fanID string) ([]models.Subscription, error)
}

func (s stubSubscriptionService) Subscribe(ctx context.Context, req services.SubscribeRequest) (services.SubscribeResult, error) {
	if s.subscribeFn == nil {
		return services.SubscribeResult{}, nil
	}
	return s.subscribeFn(ctx, req)
}

func (s stubSubscriptionService) Cancel(ctx context.Context, callerID, externalID string) (string, error) {
	if s.cancelFn == nil {
		return "", nil
	}
	return s.cancelFn(ctx, callerID, externalID)
}

func (s stubSubscriptionService) ListForFan(ctx context.Context, fanID string) ([]models.Subscription, error) {
	if s.listFn == nil {
		return []models.Subscription{}, nil
	}
	return s.listFn(ctx, fanID)
}

type stubPurchaseService struct {
	purchaseFn func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
}

func (s stubPurchaseService) Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
	if s.purchaseFn == nil {
		return services.PurchaseResult{}, nil
	}
	return s.purchaseFn(ctx, req)
}

type stubAccessService struct {
	resolveFn func(ctx context.Context, viewerID, resourceID string) (services.AccessDecision, error)
}

func (s stubAccessService) ResolveByID(ctx context.Context, viewerID, resourceID string) (services.AccessDecision, error) {
	if s.resolveFn == nil {
		return services.AccessDecision{}, services.ErrResourceNotFound
	}
	return s.resolveFn(ctx, viewerID, resourceID)
}

type stubCouponService struct {
	validateFn  func(ctx context.Context, code string) (models.Coupon, error)
	createFn    func(ctx context.Context, in services.CouponInput) (models.Coupon, error)
	setStatusFn func(ctx context.Context, code, status string) error
}

func (s stubCouponService) Validate(ctx context.Context, code string) (models.Coupon, error) {
	if s.validateFn == nil {
		return models.Coupon{}, services.ErrCouponNotFound
	}
	return s.validateFn(ctx, code)
}

func (s stubCouponService) Create(ctx context.Context, in services.CouponInput) (models.Coupon, error) {
	if s.createFn == nil {
		return models.Coupon{Code: in.Code}, nil
	}
	return s.createFn(ctx, in)
}

func (s stubCouponService) List(ctx context.Context) ([]models.Coupon, error) {
	return []models.Coupon{}, nil
}

func (s stubCouponService) SetStatus(ctx context.Context, code, status string) error {
	if s.setStatusFn == nil {
		return nil
	}
	return s.setStatusFn(ctx, code, status)
}

type stubPayoutService struct {
	requestFn func(ctx context.Context, creatorID string, amountMinor int64, bank models.BankDetails) (models.PayoutRequest, error)
	approveFn func(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error)
}

func (s stubPayoutService) Request(ctx context.Context, creatorID string, amountMinor int64, bank models.BankDetails) (models.PayoutRequest, error) {
	if s.requestFn == nil {
		return models.PayoutRequest{}, nil
	}
	return s.requestFn(ctx, creatorID, amountMinor, bank)
}

func (s stubPayoutService) Approve(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error) {
	if s.approveFn == nil {
		return models.PayoutRequest{}, nil
	}
	return s.approveFn(ctx, adminID, payoutID)
}

func (s stubPayoutService) Reject(ctx context.Context, adminID, payoutID string) (models.PayoutRequest, error) {
	return models.PayoutRequest{ID: payoutID, Status: models.PayoutRejected}, nil
}

func (s stubPayoutService) List(ctx context.Context, status string, limit, offset int) ([]models.PayoutRequest, error) {
	return []models.PayoutRequest{}, nil
}

func (s stubPayoutService) ListForCreator(ctx context.Context, creatorID string) ([]models.PayoutRequest, error) {
	return []models.PayoutRequest{}, nil
}

type stubCreatorService struct {
	verifyFn func(ctx context.Context, req services.VerifyCreatorRequest) error
}

func (s stubCreatorService) Verify(ctx context.Context, req services.VerifyCreatorRequest) error {
	if s.verifyFn == nil {
		return nil
	}
	return s.verifyFn(ctx, req)
}

func (s stubCreatorService) ListPending(ctx context.Context) ([]models.Account, error) {
	return []models.Account{}, nil
}

type stubReconciler struct {
	reconcileFn func(ctx context.Context) ([]models.BalanceDrift, error)
}

func (s stubReconciler) Reconcile(ctx context.Context) ([]models.BalanceDrift, error) {
	if s.reconcileFn == nil {
		return []models.BalanceDrift{}, nil
	}
	return s.reconcileFn(ctx)
}

type stubWebhookHandler struct {
	handleFn func(ctx context.Context, body []byte, signature string) error
}

func (s stubWebhookHandler) Handle(ctx context.Context, body []byte, signature string) error {
	if s.handleFn == nil {
		return nil
	}
	return s.handleFn(ctx, body, signature)
}

// testDeps returns a Deps whose every field is a permissive stub; tests
// override the fields they exercise.
func testDeps() Deps {
	return Deps{
		TxRunner:      fakeTxRunner{},
		Accounts:      stubAccountStore{},
		Profiles:      stubProfileStore{},
		Ledger:        stubLedger{},
		Audit:         stubAuditStore{},
		Content:       stubContentService{},
		Subscriptions: stubSubscriptionService{},
		Purchases:     stubPurchaseService{},
		Access:        stubAccessService{},
		Coupons:       stubCouponService{},
		Payouts:       stubPayoutService{},
		Creators:      stubCreatorService{},
		Wallet:        stubReconciler{},
		Webhooks:      stubWebhookHandler{},
		Hub:           websocket.NewHub(),
	}
}

func newTestHandler(deps Deps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		Currency:       "USD",
	}
	return New(cfg, deps, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// serve sends a request through the full router, authenticated as userID
// when it is non-empty.
func serve(t *testing.T, h *Handler, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, role, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	errBody, _ := decodeBody(t, rr)["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func roleStore(roles map[string]string) stubAccountStore {
	return stubAccountStore{getRoleFn: func(ctx context.Context, userID string) (string, error) {
		return roles[userID], nil
	}}
}
