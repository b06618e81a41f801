package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/propertysearch/backend/internal/application/services"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

func TestNewHistoryEntry_TemplateDetection(t *testing.T) {
	cases := map[string]*int64{
		"Used Template 7 for the city filter":  ptr(int64(7)),
		"matched template #12":                 ptr(int64(12)),
		"TEMPLATE42 applied":                   ptr(int64(42)),
		"No template matched; generated fresh": nil,
		"":                                     nil,
	}
	for explanation, want := range cases {
		entry := services.NewHistoryEntry("q", explanation)
		assert.Equal(t, want != nil, entry.QueryTemplateUsed, explanation)
		assert.Equal(t, want, entry.QueryTemplateID, explanation)
	}

	entry := services.NewHistoryEntry("q", "")
	assert.Nil(t, entry.QueryExplanation)
}

func TestHistoryService_GetHistory(t *testing.T) {
	repo := new(MockHistoryRepository)
	filters := []entities.FilterCondition{{Column: "user_prompt", Operator: "ILIKE", Value: "%loft%"}}
	repo.On("Query", mock.Anything, filters).Return([]*entities.HistoryEntry{{UserPrompt: "loft in Bern"}}, nil)

	service := services.NewHistoryService(repo)

	resp, err := service.GetHistory(context.Background(), &entities.HistoryRequest{
		Filters:     filters,
		WhereClause: "1=1; DROP TABLE user_prompt_history",
	})

	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "loft in Bern", resp.Rows[0].UserPrompt)
	repo.AssertExpectations(t)
}

func TestHistoryService_GetHistoryEmpty(t *testing.T) {
	repo := new(MockHistoryRepository)
	repo.On("Query", mock.Anything, mock.Anything).Return(nil, nil)

	resp, err := services.NewHistoryService(repo).GetHistory(context.Background(), &entities.HistoryRequest{})

	require.NoError(t, err)
	assert.NotNil(t, resp.Rows)
}

func TestHistoryService_NotInitialized(t *testing.T) {
	_, err := services.NewHistoryService(nil).GetHistory(context.Background(), &entities.HistoryRequest{})

	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeNotInitialized))
}

func TestHistoryService_RecordSwallowsErrors(t *testing.T) {
	repo := new(MockHistoryRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	assert.NotPanics(t, func() {
		services.NewHistoryService(repo).Record(context.Background(), "q", "Template 3")
	})
	repo.AssertNumberOfCalls(t, "Create", 1)

	var nilService *services.HistoryService
	assert.NotPanics(t, func() { nilService.Record(context.Background(), "q", "") })
}

func ptr[T any](v T) *T { return &v }
