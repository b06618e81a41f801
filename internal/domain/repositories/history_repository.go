package repositories

import (
	"context"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
)

// HistoryRepository defines the operations on the prompt history table.
// There is intentionally no update or delete.
type HistoryRepository interface {
	Create(ctx context.Context, entry *entities.HistoryEntry) error
	Query(ctx context.Context, filters []entities.FilterCondition) ([]*entities.HistoryEntry, error)
}
