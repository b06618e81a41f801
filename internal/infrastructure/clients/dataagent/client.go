package dataagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertysearch/backend/pkg/retry"
)

// ParseError is returned when the agent reply does not match the expected schema
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "data agent response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// StatusError is returned for non-2xx replies
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data agent request failed with status %d: %s", e.StatusCode, e.Body)
}

// Config describes the agent endpoint and the database it reasons over
type Config struct {
	Endpoint       string
	ProjectID      string
	Location       string
	DatabaseRegion string
	ClusterID      string
	InstanceID     string
	DatabaseID     string
	ContextSetName string
}

// Client calls the Gemini Data Analytics queryData API
type Client struct {
	httpClient *http.Client
	url        string
	template   queryDataRequest
	retry      retry.Config
	metrics    *observability.Metrics
}

var _ providers.DataAgent = (*Client)(nil)

// NewClient creates a data agent client. httpClient must attach credentials.
func NewClient(httpClient *http.Client, cfg Config, metrics *observability.Metrics) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("project id is required for the data agent")
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", cfg.ProjectID, cfg.Location)

	template := queryDataRequest{
		Parent: parent,
		Context: queryContext{
			DatasourceReferences: datasourceReferences{
				AlloyDB: alloyDBReference{
					DatabaseReference: databaseReference{
						ProjectID:  cfg.ProjectID,
						Region:     cfg.DatabaseRegion,
						ClusterID:  cfg.ClusterID,
						InstanceID: cfg.InstanceID,
						DatabaseID: cfg.DatabaseID,
					},
				},
			},
		},
		GenerationOptions: generationOptions{
			GenerateQueryResult:           true,
			GenerateNaturalLanguageAnswer: true,
			GenerateExplanation:           true,
		},
	}
	if cfg.ContextSetName != "" {
		template.Context.DatasourceReferences.AlloyDB.AgentContextReference = &agentContextReference{
			ContextSetID: cfg.ContextSetName,
		}
	}

	return &Client{
		httpClient: httpClient,
		url:        fmt.Sprintf("%s/v1beta/%s:queryData", strings.TrimRight(cfg.Endpoint, "/"), parent),
		template:   template,
		retry:      retry.RequestConfig(),
		metrics:    metrics,
	}, nil
}

// Query implements providers.DataAgent
func (c *Client) Query(ctx context.Context, prompt string) (*entities.AgentAnswer, error) {
	payload := c.template
	payload.Prompt = prompt

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = retry.DoWithLog(ctx, c.retry, "DataAgent",
		func(ctx context.Context) error {
			raw, err = c.post(ctx, body)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("data agent call failed, retrying")
		},
	)
	if err != nil {
		return nil, err
	}

	return decodeAnswer(raw)
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordUpstreamMetric(ctx, c.metrics, "data_agent", time.Since(start), err)
		return nil, fmt.Errorf("data agent request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		err = &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	observability.RecordUpstreamMetric(ctx, c.metrics, "data_agent", time.Since(start), err)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}
	return raw, nil
}

func decodeAnswer(raw []byte) (*entities.AgentAnswer, error) {
	var parsed queryDataResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ParseError{Err: err}
	}

	answer := &entities.AgentAnswer{
		NaturalLanguageAnswer: parsed.NaturalLanguageAnswer,
		GeneratedQuery:        parsed.GeneratedQuery,
		IntentExplanation:     parsed.IntentExplanation,
		Rows:                  []map[string]interface{}{},
	}

	if parsed.QueryResult == nil {
		return answer, nil
	}
	result := parsed.QueryResult

	if answer.GeneratedQuery == "" {
		answer.GeneratedQuery = result.Query
	}
	for _, col := range result.Columns {
		answer.Columns = append(answer.Columns, col.Name)
	}
	if result.TotalRowCount != "" {
		n, err := result.TotalRowCount.Int64()
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("totalRowCount: %w", err)}
		}
		answer.TotalRowCount = n
	}
	for i, row := range result.Rows {
		flat, err := row.flatten(result.Columns)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("row %d: %w", i, err)}
		}
		answer.Rows = append(answer.Rows, flat)
	}

	return answer, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
