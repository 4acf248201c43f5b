package handlers

import (
	"net/http"

	"creatorpay/internal/middleware"
	"creatorpay/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type tierRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Benefits []string        `json:"benefits"`
}

func (h *Handler) SaveTier(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req tierRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	tier, err := h.Content.SaveTier(r.Context(), userID, services.TierInput{
		Name:     req.Name,
		Price:    req.Price,
		Benefits: req.Benefits,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "tier_failed")
		return
	}
	respondJSON(w, http.StatusOK, tier)
}

func (h *Handler) ListMyTiers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	h.listTiers(w, r, userID)
}

func (h *Handler) ListCreatorTiers(w http.ResponseWriter, r *http.Request) {
	h.listTiers(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) listTiers(w http.ResponseWriter, r *http.Request, creatorID string) {
	tiers, err := h.Content.ListTiers(r.Context(), creatorID)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, tiers)
}

type resourceRequest struct {
	Kind       string           `json:"kind"`
	Title      string           `json:"title"`
	AccessType string           `json:"accessType"`
	Price      *decimal.Decimal `json:"price"`
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req resourceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	resource, err := h.Content.CreateResource(r.Context(), userID, services.ResourceInput{
		Kind:       req.Kind,
		Title:      req.Title,
		AccessType: req.AccessType,
		Price:      req.Price,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusCreated, resource)
}

func (h *Handler) ListMyResources(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	resources, err := h.Content.ListResources(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, resources)
}

// ResourceAccess answers whether the caller may open a resource. Anonymous
// callers are evaluated as such rather than rejected.
func (h *Handler) ResourceAccess(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.UserIDFromContext(r.Context())
	decision, err := h.Access.ResolveByID(r.Context(), viewerID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, decision)
}
