package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

type imageService interface {
	GetImage(ctx context.Context, uri string) (*services.ImageResult, error)
}

// ImageHandler proxies private listing images
type ImageHandler struct {
	service imageService
}

// NewImageHandler creates a new image handler
func NewImageHandler(service imageService) *ImageHandler {
	return &ImageHandler{service: service}
}

// GetImage handles GET /api/image?gcs_uri=<uri>
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("gcs_uri")
	if uri == "" {
		respondWithError(w, http.StatusBadRequest, services.ErrInvalidGCSURI.Error())
		return
	}

	result, err := h.service.GetImage(r.Context(), uri)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	w.Header().Set("Cache-Control", result.CacheControl)
	if result.RedirectURL != "" {
		http.Redirect(w, r, result.RedirectURL, http.StatusTemporaryRedirect)
		return
	}

	defer result.Object.Body.Close()
	w.Header().Set("Content-Type", result.Object.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Object.Body); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("image stream interrupted")
	}
}
