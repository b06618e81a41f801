package services

import (
	"context"
	"regexp"
	"strconv"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

var templatePattern = regexp.MustCompile(`(?i)template\s*#?\s*(\d+)`)

// HistoryService records data agent prompts and answers history queries.
type HistoryService struct {
	repo repositories.HistoryRepository
}

// NewHistoryService creates a new history service. repo may be nil when the
// database is not configured.
func NewHistoryService(repo repositories.HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// NewHistoryEntry builds the row logged for one agent answer. An explanation
// naming "Template N" marks the prompt as answered from template N.
func NewHistoryEntry(prompt, explanation string) *entities.HistoryEntry {
	entry := &entities.HistoryEntry{UserPrompt: prompt}
	if explanation != "" {
		entry.QueryExplanation = &explanation
	}
	if m := templatePattern.FindStringSubmatch(explanation); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			entry.QueryTemplateUsed = true
			entry.QueryTemplateID = &id
		}
	}
	return entry
}

// Record appends one history row. Failures are logged and swallowed.
func (s *HistoryService) Record(ctx context.Context, prompt, explanation string) {
	logger := observability.LoggerFromContext(ctx)
	if s == nil || s.repo == nil {
		logger.Debug().Msg("history store not configured, skipping prompt log")
		return
	}

	entry := NewHistoryEntry(prompt, explanation)
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error().Err(err).Str("prompt", prompt).Msg("failed to log prompt history")
		return
	}
	logger.Debug().Bool("template_used", entry.QueryTemplateUsed).Msg("prompt history logged")
}

// GetHistory returns the newest history rows matching the request filters
func (s *HistoryService) GetHistory(ctx context.Context, req *entities.HistoryRequest) (*entities.HistoryResponse, error) {
	if s.repo == nil {
		return nil, apperrors.NewNotInitializedError("Database not initialized")
	}

	if req.WhereClause != "" {
		observability.LoggerFromContext(ctx).Warn().
			Int("length", len(req.WhereClause)).
			Msg("ignoring legacy where_clause in history request")
	}

	rows, err := s.repo.Query(ctx, req.Filters)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*entities.HistoryEntry{}
	}
	return &entities.HistoryResponse{Rows: rows}, nil
}
