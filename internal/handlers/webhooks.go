package handlers

import (
	"io"
	"net/http"

	"creatorpay/internal/square"
)

// SquareWebhook verifies and applies a processor notification. Any non-2xx
// answer makes the processor redeliver, which the ledger absorbs.
func (h *Handler) SquareWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "unable to read body")
		return
	}
	if err := h.Webhooks.Handle(r.Context(), body, r.Header.Get(square.SignatureHeader)); err != nil {
		h.respondServiceError(w, r, err, "upstream_error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
