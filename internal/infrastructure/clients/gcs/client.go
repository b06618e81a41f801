package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
)

// Client implements providers.ObjectStore on Google Cloud Storage
type Client struct {
	client *storage.Client
}

var _ providers.ObjectStore = (*Client)(nil)

// NewClient creates a storage client with application default credentials
func NewClient(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Client{client: client}, nil
}

// SignedURL mints a V4 signed GET URL. Signing needs a service account key or
// the IAM signBlob permission; without either it fails and callers stream instead.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)

	go func() {
		url, err := c.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
			Scheme:  storage.SigningSchemeV4,
			Method:  http.MethodGet,
			Expires: time.Now().Add(expiry),
		})
		done <- result{url: url, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("failed to sign url for gs://%s/%s: %w", bucket, object, r.err)
		}
		return r.url, nil
	case <-ctx.Done():
		return "", fmt.Errorf("signing url for gs://%s/%s: %w", bucket, object, ctx.Err())
	}
}

// Open streams the object
func (c *Client) Open(ctx context.Context, bucket, object string) (*providers.Object, error) {
	reader, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if isNotFoundOrDenied(err) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, object, providers.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	return &providers.Object{
		Body:        reader,
		ContentType: reader.Attrs.ContentType,
	}, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

func isNotFoundOrDenied(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusForbidden
	}
	return false
}
