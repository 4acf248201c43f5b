package handlers

import (
	"errors"
	"net/http"
	"time"

	"creatorpay/internal/middleware"
	"creatorpay/internal/models"
	"creatorpay/internal/money"
	"creatorpay/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type verifyCreatorRequest struct {
	UID      string `json:"uid"`
	Action   string `json:"action"`
	AdminUID string `json:"adminUid"`
}

// VerifyCreator approves a pending creator or rejects one. Rejection deletes
// the account and cannot be undone.
func (h *Handler) VerifyCreator(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req verifyCreatorRequest
	if err := decodeJSON(r, &req); err != nil || req.UID == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "uid and action are required")
		return
	}
	err := h.Creators.Verify(r.Context(), services.VerifyCreatorRequest{
		CallerID:  adminID,
		AdminUID:  req.AdminUID,
		CreatorID: req.UID,
		Action:    req.Action,
	})
	if err != nil {
		if errors.Is(err, services.ErrAdminMismatch) {
			h.auditDenied(r, adminID, "creator.verify_denied", "account", req.UID)
		}
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"action":  req.Action,
	})
}

func (h *Handler) ListPendingCreators(w http.ResponseWriter, r *http.Request) {
	creators, err := h.Creators.ListPending(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, creators)
}

type couponRequest struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	UsageLimit    *int            `json:"usageLimit"`
	ExpiresAt     string          `json:"expiresAt"`
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	expiresAt, err := parseExpiry(req.ExpiresAt, time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_coupon", err.Error())
		return
	}
	coupon, err := h.Coupons.Create(r.Context(), services.CouponInput{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		UsageLimit:    req.UsageLimit,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusCreated, coupon)
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

type couponStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetCouponStatus(w http.ResponseWriter, r *http.Request) {
	var req couponStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if req.Status != models.CouponActive && req.Status != models.CouponInactive {
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be active or inactive")
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.Coupons.SetStatus(r.Context(), code, req.Status); err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"code": code, "status": req.Status})
}

func (h *Handler) AdminListPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	payouts, err := h.Payouts.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, payoutViews(payouts))
}

func (h *Handler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	payout, err := h.Payouts.Approve(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, payoutView(payout))
}

func (h *Handler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	payout, err := h.Payouts.Reject(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, payoutView(payout))
}

// Reconcile reports accounts whose stored balance differs from the ledger.
// An empty list means every balance is consistent.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Wallet.Reconcile(r.Context())
	if err != nil {
		h.logger.Error("reconcile failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to reconcile balances")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"account_id":      row.AccountID,
			"ledger_sum":      money.FormatMinor(row.LedgerSum),
			"account_balance": money.FormatMinor(row.AccountBalance),
			"difference":      money.FormatMinor(row.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.Audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load audit logs")
		return
	}
	if rows == nil {
		rows = []models.AuditLog{}
	}
	respondJSON(w, http.StatusOK, rows)
}
