package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"creatorpay/internal/auth"
	"creatorpay/internal/middleware"
	"creatorpay/internal/models"
	"creatorpay/internal/money"
	"creatorpay/internal/websocket"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	account, err := h.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account_not_found", "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load wallet")
		return
	}
	ledgerSum, err := h.Ledger.SumByAccount(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"currency":   account.Currency,
		"balance":    money.FormatMinor(account.Balance),
		"ledger_sum": money.FormatMinor(ledgerSum),
		"consistent": ledgerSum == account.Balance,
	})
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)
	rows, err := h.Ledger.ListByAccount(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load transactions")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"id":          row.ID,
			"type":        row.Type,
			"amount":      money.FormatMinor(row.Signed()),
			"source_id":   row.SourceID,
			"description": row.Description,
			"created_at":  row.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

// WSWallet streams balance updates. Browsers cannot set headers on a
// websocket handshake, so the token may also come from the query string.
func (h *Handler) WSWallet(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}
	if err := websocket.ServeWS(w, r, h.upgrader, h.Hub, claims.UserID); err != nil {
		h.logger.Warn("websocket upgrade failed", "account_id", claims.UserID, "error", err)
	}
}

type payoutRequest struct {
	Amount      string             `json:"amount"`
	BankDetails models.BankDetails `json:"bankDetails"`
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req payoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	payout, err := h.Payouts.Request(r.Context(), userID, amount, req.BankDetails)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusCreated, payoutView(payout))
}

func (h *Handler) ListMyPayouts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	payouts, err := h.Payouts.ListForCreator(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, payoutViews(payouts))
}

// payoutView hides everything but the last four digits of account numbers.
func payoutView(p models.PayoutRequest) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"creator_id":     p.CreatorID,
		"amount":         money.FormatMinor(p.Amount),
		"currency":       p.Currency,
		"status":         p.Status,
		"country":        p.BankDetails.Country,
		"account_holder": p.BankDetails.AccountHolder,
		"account_last4":  last4(p.BankDetails.AccountNumber + p.BankDetails.IBAN),
		"reviewed_by":    p.ReviewedBy,
		"reviewed_at":    p.ReviewedAt,
		"created_at":     p.CreatedAt,
	}
}

func payoutViews(payouts []models.PayoutRequest) []map[string]any {
	views := make([]map[string]any, 0, len(payouts))
	for _, p := range payouts {
		views = append(views, payoutView(p))
	}
	return views
}

func last4(value string) string {
	if len(value) <= 4 {
		return value
	}
	return value[len(value)-4:]
}
