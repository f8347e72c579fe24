package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// HistoryService lists stored verifications.
type HistoryService interface {
	History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.VerificationResult, error)
}

// VerificationHandler serves stored verification records.
type VerificationHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(history HistoryService, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{history: history, logger: logger}
}

// List returns a wallet's verifications, newest first.
// GET /api/verifications?wallet=0x...&limit=50&offset=0
func (h *VerificationHandler) List(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}

	results, err := h.history.History(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list verifications failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list verifications")
		return
	}
	if results == nil {
		results = []domain.VerificationResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"verifications": results})
}
