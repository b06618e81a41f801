package vertexai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

// MultimodalEmbedder embeds query text into the image embedding space using the
// Vertex AI multimodal embedding model's predict endpoint.
type MultimodalEmbedder struct {
	httpClient *http.Client
	endpoint   string
	dimension  int
	metrics    *observability.Metrics
}

var _ providers.ImageEmbedder = (*MultimodalEmbedder)(nil)

// MultimodalConfig configures NewMultimodalEmbedder
type MultimodalConfig struct {
	ProjectID string
	Location  string
	Model     string
	Dimension int

	// BaseURL overrides https://<location>-aiplatform.googleapis.com
	BaseURL string
}

// NewMultimodalEmbedder creates the embedder. httpClient must attach credentials.
func NewMultimodalEmbedder(httpClient *http.Client, cfg MultimodalConfig, metrics *observability.Metrics) (*MultimodalEmbedder, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project id is required for vertex ai")
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Location)
	}

	return &MultimodalEmbedder{
		httpClient: httpClient,
		endpoint: fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
			base, cfg.ProjectID, cfg.Location, cfg.Model),
		dimension: cfg.Dimension,
		metrics:   metrics,
	}, nil
}

type predictInstance struct {
	Text string `json:"text"`
}

type predictParameters struct {
	Dimension int `json:"dimension,omitempty"`
}

type predictRequest struct {
	Instances  []predictInstance  `json:"instances"`
	Parameters *predictParameters `json:"parameters,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		TextEmbedding []float32 `json:"textEmbedding"`
	} `json:"predictions"`
}

// EmbedImageQuery implements providers.ImageEmbedder
func (e *MultimodalEmbedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	reqBody := predictRequest{Instances: []predictInstance{{Text: text}}}
	if e.dimension > 0 {
		reqBody.Parameters = &predictParameters{Dimension: e.dimension}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		observability.RecordUpstreamMetric(ctx, e.metrics, "vertex_multimodal_embedding", time.Since(start), err)
		return nil, fmt.Errorf("multimodal embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("multimodal embedding failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		observability.RecordUpstreamMetric(ctx, e.metrics, "vertex_multimodal_embedding", time.Since(start), err)
		return nil, err
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		observability.RecordUpstreamMetric(ctx, e.metrics, "vertex_multimodal_embedding", time.Since(start), err)
		return nil, fmt.Errorf("decode multimodal embedding response: %w", err)
	}
	observability.RecordUpstreamMetric(ctx, e.metrics, "vertex_multimodal_embedding", time.Since(start), nil)

	if len(parsed.Predictions) == 0 || len(parsed.Predictions[0].TextEmbedding) == 0 {
		return nil, fmt.Errorf("multimodal embedding returned no text embedding")
	}
	return parsed.Predictions[0].TextEmbedding, nil
}
