package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

type historyService interface {
	GetHistory(ctx context.Context, req *entities.HistoryRequest) (*entities.HistoryResponse, error)
}

// HistoryHandler exposes the prompt history
type HistoryHandler struct {
	service historyService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service historyService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// QueryHistory handles POST /api/history
func (h *HistoryHandler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	var req entities.HistoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.GetHistory(r.Context(), &req)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("history query failed")
		if apperrors.Is(err, apperrors.ErrorTypeDatabase) {
			respondWithError(w, http.StatusInternalServerError, "failed to query history")
			return
		}
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
