package vertexai

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

// TextEmbedder produces text embeddings through the Gen AI SDK on Vertex AI
type TextEmbedder struct {
	models    *genai.Models
	model     string
	dimension int32
	metrics   *observability.Metrics
}

var _ providers.TextEmbedder = (*TextEmbedder)(nil)

// TextEmbedderConfig configures NewTextEmbedder
type TextEmbedderConfig struct {
	ProjectID string
	Location  string
	Model     string
	// Dimension truncates the output vector. Zero keeps the model default.
	Dimension int
}

// NewTextEmbedder creates a Vertex AI backed text embedder
func NewTextEmbedder(ctx context.Context, cfg TextEmbedderConfig, metrics *observability.Metrics) (*TextEmbedder, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required for vertex ai")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &TextEmbedder{
		models:    client.Models,
		model:     cfg.Model,
		dimension: int32(cfg.Dimension),
		metrics:   metrics,
	}, nil
}

// EmbedText implements providers.TextEmbedder
func (e *TextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if e.dimension > 0 {
		dim := e.dimension
		cfg.OutputDimensionality = &dim
	}

	start := time.Now()
	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	observability.RecordUpstreamMetric(ctx, e.metrics, "vertex_text_embedding", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("text embedding with %s: %w", e.model, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("text embedding with %s returned no values", e.model)
	}
	return resp.Embeddings[0].Values, nil
}
