//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/propertysearch/backend/internal/adapters/search"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/propertysearch/backend/pkg/config"
)

func TestTypesenseAdapter(t *testing.T) {
	if os.Getenv("TEST_TYPESENSE_URL") == "" {
		t.Skip("Skipping integration test: TEST_TYPESENSE_URL not set")
	}

	cfg := &config.TypesenseConfig{
		URL:    os.Getenv("TEST_TYPESENSE_URL"),
		APIKey: getEnv("TEST_TYPESENSE_API_KEY", "xyz"),
	}

	ctx := context.Background()
	client, err := typesense.NewClient(ctx, cfg, testTimeout)
	require.NoError(t, err)
	require.NoError(t, client.InitSchema(ctx))

	adapter := search.NewTypesenseAdapter(client, nil)

	image := "gs://property-images-test/lakeview.jpg"
	description, city := "Sunny loft with a view over the lake", "Zurich"
	price, bedrooms := 2950.0, 2
	property := &entities.Property{
		ID:          990001,
		Title:       "Lakeview loft",
		Description: &description,
		Price:       &price,
		City:        &city,
		Bedrooms:    &bedrooms,
		ImageURI:    &image,
	}
	require.NoError(t, adapter.Index(ctx, property))

	// Allow Typesense to index
	time.Sleep(1 * time.Second)

	results, err := adapter.Search(ctx, "lakeview loft", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, property.ID, results[0][entities.ListingKeyID])
	assert.Equal(t, image, results[0][entities.ListingKeyImageURI])
	assert.Equal(t, 2, results[0][entities.ListingKeyBedrooms])
}
