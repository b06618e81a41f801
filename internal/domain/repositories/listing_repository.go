package repositories

import (
	"context"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
)

// HybridQuery describes one weighted text + image vector search
type HybridQuery struct {
	TextEmbedding  []float32
	ImageEmbedding []float32
	Weight         float64
	Limit          int
}

// ListingRepository defines the relational operations on property listings
type ListingRepository interface {
	// HybridSearch ranks listings by weighted text and image similarity
	HybridSearch(ctx context.Context, query HybridQuery) ([]entities.Listing, error)

	// GenerateSQL asks the database's natural language function for a statement
	GenerateSQL(ctx context.Context, configID, prompt string) (string, error)

	// ExecuteReadOnly runs a generated statement in a read only transaction
	ExecuteReadOnly(ctx context.Context, statement string) ([]entities.Listing, error)

	// DistinctCities returns every city that has at least one listing
	DistinctCities(ctx context.Context) ([]string, error)

	// List returns stored properties ordered by id
	List(ctx context.Context, limit, offset int) ([]*entities.Property, error)
}

// ListingSearchRepository defines the managed full text search operations
type ListingSearchRepository interface {
	Search(ctx context.Context, query string, limit int) ([]entities.Listing, error)
	Index(ctx context.Context, property *entities.Property) error
}
