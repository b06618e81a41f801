package providers

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when an object does not exist or cannot be read
var ErrObjectNotFound = errors.New("object not found")

// Object is an open object stream
type Object struct {
	Body        io.ReadCloser
	ContentType string
}

// ObjectStore defines the object storage operations used by the image proxy
type ObjectStore interface {
	// SignedURL mints a time limited GET URL for bucket/object
	SignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)

	// Open streams bucket/object
	Open(ctx context.Context, bucket, object string) (*Object, error)
}
