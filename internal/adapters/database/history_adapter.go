package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

// HistoryAdapter implements HistoryRepository
type HistoryAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
	metrics *observability.Metrics
}

// NewHistoryAdapter creates a new history adapter
func NewHistoryAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.HistoryRepository {
	return &HistoryAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
		metrics: metrics,
	}
}

// Create appends one prompt to the history inside its own transaction
func (a *HistoryAdapter) Create(ctx context.Context, entry *entities.HistoryEntry) error {
	db, err := a.client.DB(ctx)
	if err != nil {
		return err
	}

	record := goqu.Record{
		"user_prompt":         entry.UserPrompt,
		"query_template_used": entry.QueryTemplateUsed,
		"query_template_id":   sql.NullInt64{Int64: derefInt64(entry.QueryTemplateID), Valid: entry.QueryTemplateID != nil},
		"query_explanation":   sql.NullString{String: derefString(entry.QueryExplanation), Valid: entry.QueryExplanation != nil},
	}

	query, args, err := a.dialect.Insert(historyTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "history_insert", time.Since(start)) }()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("failed to begin history transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewDatabaseError("failed to insert history entry", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("failed to commit history entry", err)
	}
	return nil
}

// Query returns the newest history rows matching the filters
func (a *HistoryAdapter) Query(ctx context.Context, filters []entities.FilterCondition) ([]*entities.HistoryEntry, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := BuildHistoryQuery(filters)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build history query", err)
	}

	start := time.Now()
	entries := []*entities.HistoryEntry{}
	err = db.SelectContext(ctx, &entries, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "history_query", time.Since(start))
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to query history", err)
	}

	return entries, nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
