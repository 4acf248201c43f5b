package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"creatorpay/internal/auth"
	"creatorpay/internal/db"
	"creatorpay/internal/middleware"
	"creatorpay/internal/models"
	"creatorpay/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Bio         string `json:"bio"`
	Country     string `json:"country"`
}

// Register creates a fan or creator account. Creators start pending and
// cannot sell anything until an admin approves them.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role == "" {
		req.Role = models.RoleFan
	}
	if req.Role != models.RoleFan && req.Role != models.RoleCreator {
		respondError(w, http.StatusBadRequest, "invalid_role", "role must be fan or creator")
		return
	}
	for _, err := range []error{
		validator.ValidateEmail(req.Email),
		validator.ValidatePassword(req.Password),
		validator.ValidateName(req.DisplayName),
	} {
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to secure password")
		return
	}

	account := models.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Currency:     h.cfg.Currency,
	}
	if req.Role == models.RoleCreator {
		status := models.CreatorStatusPending
		account.CreatorStatus = &status
	}
	err = h.TxRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.Accounts.Create(r.Context(), tx, account); err != nil {
			return err
		}
		if req.Role == models.RoleCreator {
			if err := h.Profiles.Upsert(r.Context(), tx, models.CreatorProfile{
				AccountID:   account.ID,
				DisplayName: account.DisplayName,
				Bio:         strings.TrimSpace(req.Bio),
				Country:     strings.ToUpper(strings.TrimSpace(req.Country)),
			}); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]string{
			"role":       account.Role,
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.Audit.Log(r.Context(), tx, account.ID, "register", "account", account.ID, string(data))
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		h.logger.Error("registration failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "registration failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.ID, account.Role, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"token":   token,
		"account": account,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	account, err := h.Accounts.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.logger.Error("login lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	if account.IsSystem || !auth.CheckPassword(account.PasswordHash, req.Password) {
		h.logger.Warn("login rejected", "security", true, "account_id", account.ID, "ip", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if err := h.TxRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(map[string]string{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.Audit.Log(r.Context(), tx, account.ID, "login", "account", account.ID, string(data))
	}); err != nil {
		h.logger.Error("login audit failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, account.ID, account.Role, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	account, err := h.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account_not_found", "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// auditDenied records a refused action. Failures are logged only.
func (h *Handler) auditDenied(r *http.Request, actorID, action, entityType, entityID string) {
	err := h.TxRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(map[string]string{
			"ip":   r.RemoteAddr,
			"path": r.URL.Path,
		})
		return h.Audit.Log(r.Context(), tx, actorID, action, entityType, entityID, string(data))
	})
	if err != nil {
		h.logger.Error("audit of denied action failed", "action", action, "error", err)
	}
}
