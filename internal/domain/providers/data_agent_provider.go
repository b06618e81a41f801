package providers

import (
	"context"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
)

// DataAgent answers a natural language question against the listing database
type DataAgent interface {
	Query(ctx context.Context, prompt string) (*entities.AgentAnswer, error)
}
