package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

const (
	// EnterprisePageSize is the number of hits requested from the search collection
	EnterprisePageSize = 10

	// ImageProxyPath is the endpoint that serves rewritten image references
	ImageProxyPath = "/api/image"
)

// SearchBackends holds the clients behind each search mode. Any of them may be
// nil; the modes that need a missing one answer with a "not initialized" error.
type SearchBackends struct {
	Listings      repositories.ListingRepository
	Index         repositories.ListingSearchRepository
	TextEmbedder  providers.TextEmbedder
	ImageEmbedder providers.ImageEmbedder
	Agent         providers.DataAgent
	History       *HistoryService
}

// SearchOptions configures defaults and limits of the search service
type SearchOptions struct {
	DefaultMode   entities.SearchMode
	DefaultWeight float64
	NLConfigID    string
	Timeout       time.Duration
}

type searchStrategy func(ctx context.Context, query string, weight float64) (backendResult, error)

// SearchService dispatches a natural language query to one backend
type SearchService struct {
	backends   SearchBackends
	opts       SearchOptions
	metrics    *observability.Metrics
	strategies map[entities.SearchMode]searchStrategy
}

// NewSearchService creates a new search service
func NewSearchService(backends SearchBackends, opts SearchOptions, metrics *observability.Metrics) *SearchService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = entities.SearchModeDataAgent
	}

	s := &SearchService{
		backends: backends,
		opts:     opts,
		metrics:  metrics,
	}
	s.strategies = map[entities.SearchMode]searchStrategy{
		entities.SearchModeEnterprise: s.enterpriseSearch,
		entities.SearchModeSemantic:   s.semanticSearch,
		entities.SearchModeNL2SQL:     s.nl2sqlSearch,
		entities.SearchModeDataAgent:  s.agentSearch,
	}
	return s
}

// Search answers one request. Only request validation produces an error;
// backend failures are reported inside the response.
func (s *SearchService) Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperrors.NewValidationError("query is required")
	}

	mode := s.opts.DefaultMode
	if req.Mode != "" {
		parsed, ok := entities.ParseSearchMode(req.Mode)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown search mode %q", req.Mode))
		}
		mode = parsed
	}

	strategy, ok := s.strategies[mode]
	if !ok {
		return nil, apperrors.NewNotInitializedError(fmt.Sprintf("search mode %q is not configured", mode))
	}

	weight := s.opts.DefaultWeight
	if mode == entities.SearchModeSemantic {
		if req.Weight != nil {
			weight = *req.Weight
		}
		if math.IsNaN(weight) || weight < 0 || weight > 1 {
			return nil, apperrors.NewValidationError("weight must be between 0 and 1")
		}
	}

	ctx, span := observability.StartSpan(ctx, "search."+string(mode))
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("search.mode", string(mode)))

	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	raw, err := strategy(ctx, query, weight)
	observability.RecordSearchMetric(ctx, s.metrics, string(mode), err != nil)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("mode", string(mode)).Msg("search backend failed")
		return s.failureResponse(ctx, mode, err), nil
	}

	resp := raw.normalize()
	rewriteImageURIs(resp.Listings)

	logger.Info().
		Str("mode", string(mode)).
		Int("results", len(resp.Listings)).
		Dur("duration", time.Since(start)).
		Msg("search completed")
	return resp, nil
}

func (s *SearchService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *SearchService) enterpriseSearch(ctx context.Context, query string, _ float64) (backendResult, error) {
	if s.backends.Index == nil {
		return nil, apperrors.NewNotInitializedError("Enterprise search client not initialized")
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	hits, err := s.backends.Index.Search(ctx, query, EnterprisePageSize)
	if err != nil {
		return nil, err
	}
	return &enterpriseResult{query: query, hits: hits}, nil
}

func (s *SearchService) semanticSearch(ctx context.Context, query string, weight float64) (backendResult, error) {
	if s.backends.TextEmbedder == nil || s.backends.ImageEmbedder == nil {
		return nil, apperrors.NewNotInitializedError(providers.ErrModelNotInitialized.Error())
	}
	if s.backends.Listings == nil {
		return nil, apperrors.NewNotInitializedError("Database not initialized")
	}

	embedCtx, cancel := s.bounded(ctx)
	defer cancel()

	var textVector, imageVector []float32
	g, gctx := errgroup.WithContext(embedCtx)
	g.Go(func() error {
		v, err := s.backends.TextEmbedder.EmbedText(gctx, query)
		if err != nil {
			return fmt.Errorf("text embedding: %w", err)
		}
		textVector = v
		return nil
	})
	g.Go(func() error {
		v, err := s.backends.ImageEmbedder.EmbedImageQuery(gctx, query)
		if err != nil {
			return fmt.Errorf("image embedding: %w", err)
		}
		imageVector = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dbCtx, dbCancel := s.bounded(ctx)
	defer dbCancel()

	rows, err := s.backends.Listings.HybridSearch(dbCtx, repositories.HybridQuery{
		TextEmbedding:  textVector,
		ImageEmbedding: imageVector,
		Weight:         weight,
	})
	if err != nil {
		return nil, err
	}
	return &vectorResult{weight: weight, textVector: textVector, imageVector: imageVector, rows: rows}, nil
}

func (s *SearchService) nl2sqlSearch(ctx context.Context, query string, _ float64) (backendResult, error) {
	if s.backends.Listings == nil {
		return nil, apperrors.NewNotInitializedError("Database not initialized")
	}

	genCtx, cancel := s.bounded(ctx)
	defer cancel()

	generated, err := s.backends.Listings.GenerateSQL(genCtx, s.opts.NLConfigID, query)
	if err != nil {
		return nil, err
	}
	if generated == "" {
		return &nlsqlResult{noSQL: true}, nil
	}

	statement := RewriteGeneratedSQL(generated)
	if err := ValidateReadOnly(statement); err != nil {
		return nil, apperrors.NewForbiddenError("generated SQL rejected").WithCause(err)
	}
	observability.LoggerFromContext(ctx).Debug().Str("statement", statement).Msg("executing generated SQL")

	execCtx, execCancel := s.bounded(ctx)
	defer execCancel()

	rows, err := s.backends.Listings.ExecuteReadOnly(execCtx, statement)
	if err != nil {
		return nil, err
	}

	result := &nlsqlResult{statement: statement, rows: rows}
	if len(rows) == 0 {
		result.cities = s.availableCities(ctx)
	}
	return result, nil
}

func (s *SearchService) agentSearch(ctx context.Context, query string, _ float64) (backendResult, error) {
	if s.backends.Agent == nil {
		return nil, apperrors.NewNotInitializedError("Data agent not initialized")
	}

	agentCtx, cancel := s.bounded(ctx)
	defer cancel()

	answer, err := s.backends.Agent.Query(agentCtx, query)
	if err != nil {
		return nil, err
	}

	historyCtx, historyCancel := s.bounded(ctx)
	defer historyCancel()
	s.backends.History.Record(historyCtx, query, answer.IntentExplanation)

	return &agentResult{answer: answer}, nil
}

// availableCities never fails; the fallback is best effort.
func (s *SearchService) availableCities(ctx context.Context) []string {
	if s.backends.Listings == nil {
		return []string{}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	cities, err := s.backends.Listings.DistinctCities(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to fetch cities during fallback")
		return []string{}
	}
	return cities
}

func (s *SearchService) failureResponse(ctx context.Context, mode entities.SearchMode, err error) *entities.SearchResponse {
	resp := &entities.SearchResponse{Listings: []entities.Listing{}}

	if apperrors.Is(err, apperrors.ErrorTypeDatabase) {
		resp.SQL = databaseErrorPrefix + databaseMessage(err)
		if mode == entities.SearchModeNL2SQL || mode == entities.SearchModeSemantic {
			resp.AvailableCities = s.availableCities(ctx)
		}
		return resp
	}

	resp.SQL = backendErrorPrefix + errorMessage(err)
	return resp
}

// databaseMessage prefers the driver's own message over the adapter's wording
func databaseMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err.Error()
	}
	return errorMessage(err)
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Detail()
	}
	return err.Error()
}

// rewriteImageURIs points every storage reference at the image proxy
func rewriteImageURIs(listings []entities.Listing) {
	for _, listing := range listings {
		uri, ok := listing.ImageURI()
		if !ok || !IsStorageURI(uri) {
			continue
		}
		listing[entities.ListingKeyImageURI] = ImageProxyPath + "?gcs_uri=" + url.QueryEscape(uri)
	}
}
