package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

// Embedder produces embeddings through an OpenAI compatible API.
// Each query signal needs its own instance, configured with the model and
// dimension of the stored column it is compared against.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	metrics    *observability.Metrics
}

var (
	_ providers.TextEmbedder  = (*Embedder)(nil)
	_ providers.ImageEmbedder = (*Embedder)(nil)
)

// Config holds the embedding provider settings
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// NewEmbedder creates an OpenAI compatible embedder
func NewEmbedder(cfg Config, metrics *observability.Metrics) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		metrics:    metrics,
	}, nil
}

// EmbedText implements providers.TextEmbedder
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text)
}

// EmbedImageQuery implements providers.ImageEmbedder
func (e *Embedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text)
}

func (e *Embedder) embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	observability.RecordUpstreamMetric(ctx, e.metrics, "openai_embedding", time.Since(start), err)
	if err != nil {
		return nil, describeError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embedding with %s returned no values", e.model)
	}
	return resp.Data[0].Embedding, nil
}

func describeError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai embedding error %d: %w", reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai embedding error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("openai embedding request failed: %w", err)
}
