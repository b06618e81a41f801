package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
)

const queryBy = "title,description,city"

// TypesenseAdapter implements listing search using Typesense
type TypesenseAdapter struct {
	client  *tsclient.Client
	metrics *observability.Metrics
}

var _ repositories.ListingSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client, metrics *observability.Metrics) *TypesenseAdapter {
	return &TypesenseAdapter{client: client, metrics: metrics}
}

// Index upserts a property into the listings collection
func (a *TypesenseAdapter) Index(ctx context.Context, property *entities.Property) error {
	if property == nil {
		return fmt.Errorf("property is nil")
	}

	document := map[string]interface{}{
		"id":    strconv.FormatInt(property.ID, 10),
		"title": property.Title,
	}
	if property.Description != nil {
		document["description"] = *property.Description
	}
	if property.City != nil {
		document["city"] = *property.City
	}
	if property.Price != nil {
		document["price"] = *property.Price
	}
	if property.Bedrooms != nil {
		document["bedrooms"] = *property.Bedrooms
	}
	if property.ImageURI != nil && *property.ImageURI != "" {
		document["image_gcs_uri"] = *property.ImageURI
	}

	if _, err := a.client.Client().Collection(tsclient.ListingsCollection).Documents().Upsert(ctx, document); err != nil {
		return fmt.Errorf("failed to index listing %d: %w", property.ID, err)
	}
	return nil
}

// Search runs a full text query and maps every hit to a listing
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]entities.Listing, error) {
	params := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String(queryBy),
		Page:    pointer.Int(1),
		PerPage: pointer.Int(limit),
	}

	start := time.Now()
	result, err := a.client.Client().Collection(tsclient.ListingsCollection).Documents().Search(ctx, params)
	observability.RecordUpstreamMetric(ctx, a.metrics, "typesense", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}

	listings := []entities.Listing{}
	if result.Hits == nil {
		return listings, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		listings = append(listings, documentToListing(*hit.Document))
	}
	return listings, nil
}

// Fields a document omits when the stored column is NULL.
var optionalDocumentKeys = []string{
	entities.ListingKeyDescription,
	entities.ListingKeyPrice,
	entities.ListingKeyCity,
	entities.ListingKeyBedrooms,
}

func documentToListing(doc map[string]interface{}) entities.Listing {
	listing := entities.Listing{}
	for k, v := range doc {
		listing[k] = v
	}

	if id, ok := doc["id"].(string); ok {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			listing[entities.ListingKeyID] = n
		}
	}
	if bedrooms, ok := doc["bedrooms"].(float64); ok {
		listing[entities.ListingKeyBedrooms] = int(bedrooms)
	}
	if _, ok := listing.ImageURI(); !ok {
		listing[entities.ListingKeyImageURI] = nil
	}
	for _, key := range optionalDocumentKeys {
		if _, ok := listing[key]; !ok {
			listing[key] = nil
		}
	}

	return listing.StripEmbeddings()
}
