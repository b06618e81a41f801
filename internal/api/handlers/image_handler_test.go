package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/propertysearch/backend/internal/api/handlers"
	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
)

type recordingStore struct {
	signed    string
	signErr   error
	body      string
	openErr   error
	signCalls int
	openCalls int
}

func (s *recordingStore) SignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	s.signCalls++
	return s.signed, s.signErr
}

func (s *recordingStore) Open(ctx context.Context, bucket, object string) (*providers.Object, error) {
	s.openCalls++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &providers.Object{Body: io.NopCloser(strings.NewReader(s.body)), ContentType: "image/png"}, nil
}

func imageRequest(uri string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/api/image?gcs_uri="+url.QueryEscape(uri), nil)
}

func TestImageHandler_Redirect(t *testing.T) {
	store := &recordingStore{signed: "https://storage.googleapis.com/listings/a.jpg?X-Goog-Signature=abc"}
	handler := handlers.NewImageHandler(services.NewImageService(store, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("gs://listings/a.jpg"))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, store.signed, w.Header().Get("Location"))
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
}

func TestImageHandler_StreamFallback(t *testing.T) {
	store := &recordingStore{signErr: errors.New("no signer"), body: "png-bytes"}
	handler := handlers.NewImageHandler(services.NewImageService(store, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("https://storage.googleapis.com/listings/b.png"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))
}

func TestImageHandler_DisallowedBucket(t *testing.T) {
	store := &recordingStore{signed: "https://example.com"}
	handler := handlers.NewImageHandler(services.NewImageService(store, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("gs://someone-else/secret.jpg"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, store.signCalls)
	assert.Zero(t, store.openCalls)
}

func TestImageHandler_InvalidURI(t *testing.T) {
	store := &recordingStore{}
	handler := handlers.NewImageHandler(services.NewImageService(store, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("http://169.254.169.254/latest/meta-data"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.signCalls)
}

func TestImageHandler_MissingParameter(t *testing.T) {
	handler := handlers.NewImageHandler(services.NewImageService(&recordingStore{}, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, httptest.NewRequest(http.MethodGet, "/api/image", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageHandler_NotFound(t *testing.T) {
	store := &recordingStore{signErr: errors.New("no signer"), openErr: errors.New("object doesn't exist")}
	handler := handlers.NewImageHandler(services.NewImageService(store, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("gs://listings/missing.jpg"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Image not found")
}

func TestImageHandler_StorageNotInitialized(t *testing.T) {
	handler := handlers.NewImageHandler(services.NewImageService(nil, "listings", time.Second))

	w := httptest.NewRecorder()
	handler.GetImage(w, imageRequest("gs://listings/a.jpg"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Storage client not initialized")
}
