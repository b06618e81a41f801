package services_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

func newSearchService(backends services.SearchBackends) *services.SearchService {
	return services.NewSearchService(backends, services.SearchOptions{
		DefaultMode:   entities.SearchModeDataAgent,
		DefaultWeight: 0.6,
		NLConfigID:    "property_search_config",
	}, nil)
}

func TestSearchService_Validation(t *testing.T) {
	service := newSearchService(services.SearchBackends{})
	outOfRange := 1.5
	nan := math.NaN()

	cases := map[string]*entities.SearchRequest{
		"empty query":   {Query: "   "},
		"unknown mode":  {Query: "loft", Mode: "telepathy"},
		"weight high":   {Query: "loft", Mode: "semantic", Weight: &outOfRange},
		"weight is NaN": {Query: "loft", Mode: "hybrid", Weight: &nan},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := service.Search(context.Background(), req)
			assert.Nil(t, resp)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestSearchService_WeightIgnoredOutsideSemanticMode(t *testing.T) {
	index := new(MockListingSearchRepository)
	index.On("Search", mock.Anything, "loft", services.EnterprisePageSize).Return([]entities.Listing{}, nil)

	service := newSearchService(services.SearchBackends{Index: index})
	weight := 7.0

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "loft", Mode: "vertex_search", Weight: &weight})

	require.NoError(t, err)
	assert.NotNil(t, resp.Listings)
	index.AssertExpectations(t)
}

func TestSearchService_EnterpriseSearch(t *testing.T) {
	index := new(MockListingSearchRepository)
	index.On("Search", mock.Anything, "sunny loft", 10).Return([]entities.Listing{
		{"id": int64(1), "title": "Loft", "image_gcs_uri": "gs://property-images-p1/loft.jpg"},
		{"id": int64(2), "title": "Studio"},
	}, nil)

	service := newSearchService(services.SearchBackends{Index: index})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "sunny loft", Mode: "enterprise_search"})

	require.NoError(t, err)
	require.Len(t, resp.Listings, 2)
	assert.Equal(t, "/api/image?gcs_uri=gs%3A%2F%2Fproperty-images-p1%2Floft.jpg", resp.Listings[0]["image_gcs_uri"])
	v, present := resp.Listings[1]["image_gcs_uri"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.Contains(t, resp.SQL, "// MANAGED SERVICE CALL")
	assert.Contains(t, resp.SQL, "'sunny loft'")
}

func TestSearchService_SemanticSearch(t *testing.T) {
	text := new(MockTextEmbedder)
	image := new(MockImageEmbedder)
	listings := new(MockListingRepository)

	text.On("EmbedText", mock.Anything, "modern kitchen").Return([]float32{0.11, 0.22}, nil)
	image.On("EmbedImageQuery", mock.Anything, "modern kitchen").Return([]float32{0.33}, nil)
	listings.On("HybridSearch", mock.Anything, repositories.HybridQuery{
		TextEmbedding:  []float32{0.11, 0.22},
		ImageEmbedding: []float32{0.33},
		Weight:         0.25,
	}).Return([]entities.Listing{
		{"id": int64(5), "image_gcs_uri": "https://storage.googleapis.com/property-images-p1/5.jpg", "image_embedding": "[0.3]"},
	}, nil)

	service := newSearchService(services.SearchBackends{Listings: listings, TextEmbedder: text, ImageEmbedder: image})
	weight := 0.25

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "modern kitchen", Mode: "semantic", Weight: &weight})

	require.NoError(t, err)
	require.Len(t, resp.Listings, 1)
	assert.NotContains(t, resp.Listings[0], "image_embedding")
	assert.Equal(t, "/api/image?gcs_uri=https%3A%2F%2Fstorage.googleapis.com%2Fproperty-images-p1%2F5.jpg", resp.Listings[0]["image_gcs_uri"])
	assert.Contains(t, resp.SQL, "(0.25 * (1 - (description_embedding <=>")
	assert.Contains(t, resp.SQL, "((1 - 0.25) * (1 - (image_embedding <=>")
	listings.AssertExpectations(t)
}

func TestSearchService_SemanticSearchUsesDefaultWeight(t *testing.T) {
	text := new(MockTextEmbedder)
	image := new(MockImageEmbedder)
	listings := new(MockListingRepository)

	text.On("EmbedText", mock.Anything, "q").Return([]float32{1}, nil)
	image.On("EmbedImageQuery", mock.Anything, "q").Return([]float32{1}, nil)
	listings.On("HybridSearch", mock.Anything, mock.MatchedBy(func(q repositories.HybridQuery) bool {
		return q.Weight == 0.6
	})).Return([]entities.Listing{}, nil)

	service := newSearchService(services.SearchBackends{Listings: listings, TextEmbedder: text, ImageEmbedder: image})

	_, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q", Mode: "semantic"})

	require.NoError(t, err)
	listings.AssertExpectations(t)
}

func TestSearchService_SemanticSearchWithoutModel(t *testing.T) {
	listings := new(MockListingRepository)
	service := newSearchService(services.SearchBackends{Listings: listings, TextEmbedder: new(MockTextEmbedder)})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q", Mode: "semantic"})

	require.NoError(t, err)
	assert.Empty(t, resp.Listings)
	assert.Equal(t, "Backend Error: model not initialized", resp.SQL)
	listings.AssertNotCalled(t, "HybridSearch", mock.Anything, mock.Anything)
}

func TestSearchService_SemanticSearchEmbeddingFailureAborts(t *testing.T) {
	text := new(MockTextEmbedder)
	image := new(MockImageEmbedder)
	listings := new(MockListingRepository)

	text.On("EmbedText", mock.Anything, "q").Return([]float32{1}, nil).Maybe()
	image.On("EmbedImageQuery", mock.Anything, "q").Return(nil, errors.New("quota exceeded"))

	service := newSearchService(services.SearchBackends{Listings: listings, TextEmbedder: text, ImageEmbedder: image})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q", Mode: "semantic"})

	require.NoError(t, err)
	assert.Empty(t, resp.Listings)
	assert.Equal(t, "Backend Error: image embedding: quota exceeded", resp.SQL)
	listings.AssertNotCalled(t, "HybridSearch", mock.Anything, mock.Anything)
}

func TestSearchService_NL2SQLRewritesBeforeExecution(t *testing.T) {
	listings := new(MockListingRepository)
	listings.On("GenerateSQL", mock.Anything, "property_search_config", "flats in Basel").
		Return("SELECT id, title FROM property_listings LIMIT 1000", nil)
	listings.On("ExecuteReadOnly", mock.Anything, "SELECT image_gcs_uri, id, title FROM property_listings LIMIT 20").
		Return([]entities.Listing{{"id": int64(1), "title": "Flat", "image_gcs_uri": "gs://property-images-p1/1.jpg"}}, nil)

	service := newSearchService(services.SearchBackends{Listings: listings})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "flats in Basel", Mode: "nl2sql"})

	require.NoError(t, err)
	assert.Equal(t, "SELECT image_gcs_uri, id, title FROM property_listings LIMIT 20", resp.SQL)
	require.Len(t, resp.Listings, 1)
	assert.Equal(t, "/api/image?gcs_uri=gs%3A%2F%2Fproperty-images-p1%2F1.jpg", resp.Listings[0]["image_gcs_uri"])
	listings.AssertExpectations(t)
}

func TestSearchService_NL2SQLNoStatement(t *testing.T) {
	listings := new(MockListingRepository)
	listings.On("GenerateSQL", mock.Anything, mock.Anything, "gibberish").Return("", nil)

	service := newSearchService(services.SearchBackends{Listings: listings})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "gibberish", Mode: "nl2sql"})

	require.NoError(t, err)
	assert.Equal(t, "Could not generate SQL from query.", resp.SQL)
	assert.NotNil(t, resp.Listings)
	assert.Empty(t, resp.Listings)
}

func TestSearchService_NL2SQLEmptyResultSuggestsCities(t *testing.T) {
	listings := new(MockListingRepository)
	listings.On("GenerateSQL", mock.Anything, mock.Anything, "castle in Oslo").Return("SELECT id FROM property_listings WHERE city = 'Oslo'", nil)
	listings.On("ExecuteReadOnly", mock.Anything, mock.Anything).Return([]entities.Listing{}, nil)
	listings.On("DistinctCities", mock.Anything).Return([]string{"Basel", "Geneva", "Zurich"}, nil)

	service := newSearchService(services.SearchBackends{Listings: listings})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "castle in Oslo", Mode: "nl2sql"})

	require.NoError(t, err)
	assert.Empty(t, resp.Listings)
	assert.Equal(t, services.DisplayCitiesQuery, resp.SQL)
	assert.Equal(t, []string{"Basel", "Geneva", "Zurich"}, resp.AvailableCities)
}

func TestSearchService_NL2SQLRejectsWrites(t *testing.T) {
	listings := new(MockListingRepository)
	listings.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("DELETE FROM property_listings", nil)

	service := newSearchService(services.SearchBackends{Listings: listings})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "remove everything", Mode: "nl2sql"})

	require.NoError(t, err)
	assert.Empty(t, resp.Listings)
	assert.Contains(t, resp.SQL, "Backend Error: generated SQL rejected")
	listings.AssertNotCalled(t, "ExecuteReadOnly", mock.Anything, mock.Anything)
}

func TestSearchService_DatabaseErrorFallsBackToCities(t *testing.T) {
	listings := new(MockListingRepository)
	listings.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("SELECT rooms FROM property_listings", nil)
	listings.On("ExecuteReadOnly", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewDatabaseError("generated statement failed", errors.New(`pq: column "rooms" does not exist`)))
	listings.On("DistinctCities", mock.Anything).Return([]string{"Zurich"}, nil)

	service := newSearchService(services.SearchBackends{Listings: listings})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "rooms", Mode: "nl2sql"})

	require.NoError(t, err)
	assert.Equal(t, `Database Error: pq: column "rooms" does not exist`, resp.SQL)
	assert.Equal(t, []string{"Zurich"}, resp.AvailableCities)
	assert.Empty(t, resp.Listings)
}

func TestSearchService_DataAgentScenario(t *testing.T) {
	agent := new(MockDataAgent)
	history := new(MockHistoryRepository)

	prompt := "2-bedroom apartment Zurich under 3000"
	agent.On("Query", mock.Anything, prompt).Return(&entities.AgentAnswer{
		NaturalLanguageAnswer: "Found 2 apartments.",
		GeneratedQuery:        "SELECT * FROM property_listings WHERE city = 'Zurich'",
		Rows:                  []map[string]interface{}{},
	}, nil)
	history.On("Create", mock.Anything, mock.MatchedBy(func(e *entities.HistoryEntry) bool {
		return e.UserPrompt == prompt && !e.QueryTemplateUsed && e.QueryTemplateID == nil
	})).Return(nil).Once()

	service := newSearchService(services.SearchBackends{
		Agent:   agent,
		History: services.NewHistoryService(history),
	})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: prompt})

	require.NoError(t, err)
	assert.Equal(t, "Found 2 apartments.", resp.NLAnswer)
	assert.NotNil(t, resp.Listings)
	assert.Empty(t, resp.Listings)
	assert.Equal(t, "// GEMINI DATA AGENT CALL\nSELECT * FROM property_listings WHERE city = 'Zurich'", resp.SQL)
	history.AssertExpectations(t)
}

func TestSearchService_DataAgentLogsTemplateOnEveryCall(t *testing.T) {
	agent := new(MockDataAgent)
	history := new(MockHistoryRepository)

	agent.On("Query", mock.Anything, "lofts").Return(&entities.AgentAnswer{
		NaturalLanguageAnswer: "Here are lofts.",
		IntentExplanation:     "Matched Template 7 for property type filters.",
		Rows: []map[string]interface{}{
			{"id": int64(3), "title": "Loft", "image_gcs_uri": "gs://property-images-p1/3.jpg", "description_embedding": "[0.1]"},
		},
	}, nil)

	var logged []*entities.HistoryEntry
	history.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		logged = append(logged, args.Get(1).(*entities.HistoryEntry))
	}).Return(nil)

	service := newSearchService(services.SearchBackends{Agent: agent, History: services.NewHistoryService(history)})
	req := &entities.SearchRequest{Query: "lofts", Mode: "gda"}

	for i := 0; i < 2; i++ {
		resp, err := service.Search(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, resp.Listings, 1)
		assert.NotContains(t, resp.Listings[0], "description_embedding")
		assert.Equal(t, "/api/image?gcs_uri=gs%3A%2F%2Fproperty-images-p1%2F3.jpg", resp.Listings[0]["image_gcs_uri"])
	}

	require.Len(t, logged, 2)
	for _, entry := range logged {
		assert.True(t, entry.QueryTemplateUsed)
		require.NotNil(t, entry.QueryTemplateID)
		assert.Equal(t, int64(7), *entry.QueryTemplateID)
	}
}

func TestSearchService_DataAgentHistoryFailureIsIgnored(t *testing.T) {
	agent := new(MockDataAgent)
	history := new(MockHistoryRepository)

	agent.On("Query", mock.Anything, "q").Return(&entities.AgentAnswer{NaturalLanguageAnswer: "ok", Rows: []map[string]interface{}{}}, nil)
	history.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	service := newSearchService(services.SearchBackends{Agent: agent, History: services.NewHistoryService(history)})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.NLAnswer)
}

func TestSearchService_DataAgentFailure(t *testing.T) {
	agent := new(MockDataAgent)
	history := new(MockHistoryRepository)
	agent.On("Query", mock.Anything, "q").Return(nil, errors.New("data agent request failed with status 403"))

	service := newSearchService(services.SearchBackends{Agent: agent, History: services.NewHistoryService(history)})

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "Backend Error: data agent request failed with status 403", resp.SQL)
	assert.Empty(t, resp.Listings)
	history.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSearchService_UninitializedBackends(t *testing.T) {
	service := newSearchService(services.SearchBackends{})

	for mode, want := range map[string]string{
		"enterprise_search": "Backend Error: Enterprise search client not initialized",
		"nl2sql":            "Backend Error: Database not initialized",
		"data_agent":        "Backend Error: Data agent not initialized",
	} {
		resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "q", Mode: mode})
		require.NoError(t, err)
		assert.Equal(t, want, resp.SQL, mode)
	}
}

func TestSearchService_UnknownDefaultMode(t *testing.T) {
	service := services.NewSearchService(services.SearchBackends{}, services.SearchOptions{
		DefaultMode: entities.SearchMode("vector_only"),
	}, nil)

	resp, err := service.Search(context.Background(), &entities.SearchRequest{Query: "loft"})

	assert.Nil(t, resp)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotInitialized), "got %v", err)
}
