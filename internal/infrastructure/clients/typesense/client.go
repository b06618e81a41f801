package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/propertysearch/backend/pkg/config"
	"github.com/zatekoja/propertysearch/backend/pkg/retry"
)

const (
	ListingsCollection = "property_listings"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client and waits for the server to report healthy
func NewClient(ctx context.Context, cfg *config.TypesenseConfig, timeout time.Duration) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("typesense url not configured")
	}

	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(timeout),
	)

	err := retry.DoWithLog(ctx, retry.DefaultConfig(), "Typesense",
		func(ctx context.Context) error {
			healthy, err := client.Health(ctx, 2*time.Second)
			if err != nil {
				return err
			}
			if !healthy {
				return fmt.Errorf("typesense reported unhealthy")
			}
			return nil
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Connected to Typesense")
	return &Client{client: client}, nil
}

// NewClientFromTypesense wraps an existing client without a health check
func NewClientFromTypesense(client *typesense.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// ListingsSchema is the collection schema used for enterprise search
func ListingsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: ListingsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "city", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "price", Type: "float", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "bedrooms", Type: "int32", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "image_gcs_uri", Type: "string", Optional: pointer.True(), Index: pointer.False()},
		},
	}
}

// InitSchema ensures the listings collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.client.Collection(ListingsCollection).Retrieve(ctx); err == nil {
		return nil
	}

	if _, err := c.client.Collections().Create(ctx, ListingsSchema()); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", ListingsCollection, err)
	}

	log.Info().Str("collection", ListingsCollection).Msg("Created Typesense collection")
	return nil
}

// DropListings deletes the listings collection
func (c *Client) DropListings(ctx context.Context) error {
	_, err := c.client.Collection(ListingsCollection).Delete(ctx)
	return err
}
