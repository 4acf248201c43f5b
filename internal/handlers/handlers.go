package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"creatorpay/internal/services"
	"creatorpay/internal/square"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxBodyBytes    = 1 << 20
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errorMapping{
	{services.ErrTierNotFound, http.StatusNotFound, "tier_not_found"},
	{services.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found"},
	{services.ErrResourceNotFound, http.StatusNotFound, "resource_not_found"},
	{services.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found"},
	{services.ErrPayoutNotFound, http.StatusNotFound, "payout_not_found"},
	{services.ErrCreatorNotFound, http.StatusNotFound, "creator_not_found"},
	{services.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},

	{services.ErrPriceMismatch, http.StatusBadRequest, "price_mismatch"},
	{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidCoupon, http.StatusBadRequest, "invalid_coupon"},
	{services.ErrInvalidBankDetails, http.StatusBadRequest, "invalid_bank_details"},
	{services.ErrUnknownAccessType, http.StatusBadRequest, "unknown_access_type"},
	{services.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},
	{services.ErrSelfSubscription, http.StatusBadRequest, "self_subscription"},
	{services.ErrNotPurchasable, http.StatusBadRequest, "not_purchasable"},
	{services.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{services.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},

	{services.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{services.ErrPaymentNotCompleted, http.StatusPaymentRequired, "payment_not_completed"},

	{services.ErrNotSubscriptionOwner, http.StatusForbidden, "forbidden"},
	{services.ErrAdminMismatch, http.StatusForbidden, "admin_mismatch"},
	{services.ErrCreatorNotApproved, http.StatusForbidden, "creator_not_approved"},

	{services.ErrAlreadyPurchased, http.StatusConflict, "already_purchased"},
	{services.ErrCouponExists, http.StatusConflict, "coupon_exists"},
	{services.ErrPayoutNotPending, http.StatusConflict, "payout_not_pending"},
	{services.ErrCreatorHasHistory, http.StatusConflict, "creator_has_history"},

	{services.ErrWebhookNotConfigured, http.StatusInternalServerError, "webhook_not_configured"},
}

// respondServiceError maps a service error to a response. Processor failures
// become 502 under upstreamCode and carry the processor's own message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, upstreamCode string) {
	if errors.Is(err, services.ErrUpstream) || errors.Is(err, services.ErrPlanProvisioning) {
		message := "payment processor unavailable"
		var apiErr *square.APIError
		if errors.As(err, &apiErr) {
			message = apiErr.Detail()
		}
		h.logger.Error("upstream call failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, upstreamCode, message)
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dest)
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// pagination reads limit and page query parameters.
func pagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	limit = parseInt(query.Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
