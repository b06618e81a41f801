package providers

import (
	"context"
	"errors"
)

// ErrModelNotInitialized is returned when an embedding model was never configured
var ErrModelNotInitialized = errors.New("model not initialized")

// TextEmbedder turns free text into a semantic text embedding
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder turns free text into a vector in the image embedding space
type ImageEmbedder interface {
	EmbedImageQuery(ctx context.Context, text string) ([]float32, error)
}
