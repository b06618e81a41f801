package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

type searchService interface {
	Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error)
}

// SearchHandler handles natural language listing searches
type SearchHandler struct {
	service searchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service searchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search handles POST /api/search.
// Backend failures still answer 200; the reason is carried in the sql field.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req entities.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Search(r.Context(), &req)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("search request rejected")
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
