package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/providers"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) HybridSearch(ctx context.Context, q repositories.HybridQuery) ([]entities.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Listing), args.Error(1)
}

func (m *MockListingRepository) GenerateSQL(ctx context.Context, configID, prompt string) (string, error) {
	args := m.Called(ctx, configID, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockListingRepository) ExecuteReadOnly(ctx context.Context, statement string) ([]entities.Listing, error) {
	args := m.Called(ctx, statement)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Listing), args.Error(1)
}

func (m *MockListingRepository) DistinctCities(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockListingRepository) List(ctx context.Context, limit, offset int) ([]*entities.Property, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Property), args.Error(1)
}

type MockListingSearchRepository struct {
	mock.Mock
}

func (m *MockListingSearchRepository) Search(ctx context.Context, query string, limit int) ([]entities.Listing, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Listing), args.Error(1)
}

func (m *MockListingSearchRepository) Index(ctx context.Context, property *entities.Property) error {
	return m.Called(ctx, property).Error(0)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Create(ctx context.Context, entry *entities.HistoryEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockHistoryRepository) Query(ctx context.Context, filters []entities.FilterCondition) ([]*entities.HistoryEntry, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HistoryEntry), args.Error(1)
}

type MockTextEmbedder struct {
	mock.Mock
}

func (m *MockTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockImageEmbedder struct {
	mock.Mock
}

func (m *MockImageEmbedder) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockDataAgent struct {
	mock.Mock
}

func (m *MockDataAgent) Query(ctx context.Context, prompt string) (*entities.AgentAnswer, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AgentAnswer), args.Error(1)
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) SignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucket, object, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Open(ctx context.Context, bucket, object string) (*providers.Object, error) {
	args := m.Called(ctx, bucket, object)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Object), args.Error(1)
}
