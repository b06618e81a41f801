package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

const (
	gsScheme        = "gs://"
	gcsPublicPrefix = "https://storage.googleapis.com/"

	// SignedURLExpiry is the lifetime of a minted image URL
	SignedURLExpiry = time.Hour

	redirectCacheControl = "public, max-age=300"
	streamCacheControl   = "public, max-age=86400"
	defaultImageType     = "image/jpeg"
)

// ErrInvalidGCSURI is returned for references that are not gs:// or storage.googleapis.com URLs
var ErrInvalidGCSURI = errors.New("Invalid GCS URI")

// ImageResult is either a redirect to a signed URL or an open object stream
type ImageResult struct {
	RedirectURL  string
	Object       *providers.Object
	CacheControl string
}

// ImageService serves private listing images from the single allowed bucket
type ImageService struct {
	store         providers.ObjectStore
	allowedBucket string
	timeout       time.Duration
}

// NewImageService creates a new image service. store may be nil when the
// storage client failed to initialize.
func NewImageService(store providers.ObjectStore, allowedBucket string, timeout time.Duration) *ImageService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageService{
		store:         store,
		allowedBucket: allowedBucket,
		timeout:       timeout,
	}
}

// ParseGCSURI splits a storage reference into bucket and object
func ParseGCSURI(uri string) (bucket, object string, err error) {
	var path string
	switch {
	case strings.HasPrefix(uri, gsScheme):
		path = strings.TrimPrefix(uri, gsScheme)
	case strings.HasPrefix(uri, gcsPublicPrefix):
		path = strings.TrimPrefix(uri, gcsPublicPrefix)
	default:
		return "", "", ErrInvalidGCSURI
	}

	bucket, object, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", ErrInvalidGCSURI
	}
	return bucket, object, nil
}

// IsStorageURI reports whether a value references object storage
func IsStorageURI(uri string) bool {
	return strings.HasPrefix(uri, gsScheme) || strings.HasPrefix(uri, gcsPublicPrefix)
}

// GetImage resolves a storage reference to a signed redirect, or to a byte
// stream when signing is not possible. Buckets other than the allowed one are
// refused before any storage call.
func (s *ImageService) GetImage(ctx context.Context, uri string) (*ImageResult, error) {
	if s.store == nil {
		return nil, apperrors.NewNotInitializedError("Storage client not initialized")
	}

	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, apperrors.NewValidationError(ErrInvalidGCSURI.Error())
	}
	if bucket != s.allowedBucket {
		observability.LoggerFromContext(ctx).Warn().Str("bucket", bucket).Msg("refusing image from disallowed bucket")
		return nil, apperrors.NewForbiddenError("Invalid GCS bucket.")
	}

	signCtx, cancel := context.WithTimeout(ctx, s.timeout)
	signed, err := s.store.SignedURL(signCtx, bucket, object, SignedURLExpiry)
	cancel()
	if err == nil {
		return &ImageResult{RedirectURL: signed, CacheControl: redirectCacheControl}, nil
	}
	observability.LoggerFromContext(ctx).Warn().Err(err).Msg("signed URL generation failed, streaming object instead")

	// The stream lives as long as the request, not the signing timeout.
	obj, err := s.store.Open(ctx, bucket, object)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Str("object", object).Msg("image delivery failed")
		return nil, apperrors.NewNotFoundError("Image not found")
	}
	if obj.ContentType == "" {
		obj.ContentType = defaultImageType
	}
	return &ImageResult{Object: obj, CacheControl: streamCacheControl}, nil
}
