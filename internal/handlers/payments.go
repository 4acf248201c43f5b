package handlers

import (
	"errors"
	"net/http"
	"strings"

	"creatorpay/internal/middleware"
	"creatorpay/internal/services"

	"github.com/shopspring/decimal"
)

type subscribeRequest struct {
	SourceID  string          `json:"sourceId"`
	CreatorID string          `json:"creatorId"`
	TierName  string          `json:"tierName"`
	Price     decimal.Decimal `json:"price"`
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if req.SourceID == "" || req.CreatorID == "" || req.TierName == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "sourceId, creatorId and tierName are required")
		return
	}
	result, err := h.Subscriptions.Subscribe(r.Context(), services.SubscribeRequest{
		FanID:         userID,
		CreatorID:     req.CreatorID,
		TierName:      req.TierName,
		ProposedPrice: req.Price,
		SourceID:      req.SourceID,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "subscription_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"id":             result.ID,
		"subscriptionId": result.SubscriptionID,
		"status":         result.Status,
	})
}

type cancelRequest struct {
	SquareSubscriptionID string `json:"squareSubscriptionId"`
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil || req.SquareSubscriptionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "squareSubscriptionId is required")
		return
	}
	status, err := h.Subscriptions.Cancel(r.Context(), userID, req.SquareSubscriptionID)
	if err != nil {
		if errors.Is(err, services.ErrNotSubscriptionOwner) {
			h.auditDenied(r, userID, "subscription.cancel_denied", "subscription", req.SquareSubscriptionID)
		}
		h.respondServiceError(w, r, err, "cancel_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  status,
	})
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "code is required")
		return
	}
	coupon, err := h.Coupons.Validate(r.Context(), req.Code)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":         true,
		"code":          coupon.Code,
		"discountType":  coupon.DiscountType,
		"discountValue": coupon.DiscountValue,
		"expiresAt":     coupon.ExpiresAt,
	})
}

type purchaseRequest struct {
	ResourceID string `json:"resourceId"`
	SourceID   string `json:"sourceId"`
	CouponCode string `json:"couponCode"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil || req.ResourceID == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "resourceId is required")
		return
	}
	result, err := h.Purchases.Purchase(r.Context(), services.PurchaseRequest{
		ViewerID:   userID,
		ResourceID: req.ResourceID,
		SourceID:   req.SourceID,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "purchase_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"purchaseId": result.PurchaseID,
		"paymentId":  result.PaymentID,
		"amount":     result.Amount,
		"currency":   result.Currency,
	})
}

func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	subs, err := h.Subscriptions.ListForFan(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, subs)
}
