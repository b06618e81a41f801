package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zatekoja/propertysearch/backend/internal/adapters/database"
	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
)

// Display text returned in the sql field.
const (
	DisplayAgentHeader  = "// GEMINI DATA AGENT CALL"
	DisplayNoSQL        = "Could not generate SQL from query."
	DisplayCitiesQuery  = `SELECT DISTINCT city FROM "search".property_listings ORDER BY city`
	backendErrorPrefix  = "Backend Error: "
	databaseErrorPrefix = "Database Error: "
)

// backendResult is the raw answer of one search backend. Each variant knows
// how to turn itself into the common response shape.
type backendResult interface {
	normalize() *entities.SearchResponse
}

type enterpriseResult struct {
	query string
	hits  []entities.Listing
}

func (r *enterpriseResult) normalize() *entities.SearchResponse {
	listings := make([]entities.Listing, 0, len(r.hits))
	for _, hit := range r.hits {
		if _, ok := hit[entities.ListingKeyImageURI]; !ok {
			hit[entities.ListingKeyImageURI] = nil
		}
		listings = append(listings, hit.StripEmbeddings())
	}
	return &entities.SearchResponse{
		Listings: listings,
		SQL: fmt.Sprintf("// MANAGED SERVICE CALL\n// Typesense collection: property_listings\n// Query: '%s'\n// Strategy: typo tolerant keyword match on title, description and city",
			r.query),
	}
}

type vectorResult struct {
	weight      float64
	textVector  []float32
	imageVector []float32
	rows        []entities.Listing
}

func (r *vectorResult) normalize() *entities.SearchResponse {
	listings := make([]entities.Listing, 0, len(r.rows))
	for _, row := range r.rows {
		listings = append(listings, row.StripEmbeddings())
	}
	return &entities.SearchResponse{
		Listings: listings,
		SQL:      hybridDisplaySQL(r.weight, r.textVector, r.imageVector),
	}
}

func hybridDisplaySQL(weight float64, textVector, imageVector []float32) string {
	score := database.HybridScoreSQL(weight,
		"'"+previewVector(textVector)+"'",
		"'"+previewVector(imageVector)+"'",
	)
	return "// Hybrid Semantic Search: Text + Image\n" +
		"// Similarity = 1 - Cosine Distance (<=>)\n" +
		"// Ranking = Weighted Average of Text & Image Similarity\n" +
		"SELECT id, title, description, price, city, bedrooms, image_gcs_uri\n" +
		"FROM \"search\".property_listings\n" +
		"ORDER BY\n  (" + score + ") DESC\n" +
		"LIMIT " + strconv.Itoa(database.DefaultHybridLimit) + ";"
}

// previewVector shows the first few components of a vector
func previewVector(v []float32) string {
	const shown = 3
	parts := make([]string, 0, shown+1)
	for i, x := range v {
		if i == shown {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', 4, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

type nlsqlResult struct {
	statement string
	rows      []entities.Listing
	cities    []string
	noSQL     bool
}

func (r *nlsqlResult) normalize() *entities.SearchResponse {
	resp := &entities.SearchResponse{Listings: []entities.Listing{}}
	switch {
	case r.noSQL:
		resp.SQL = DisplayNoSQL
	case len(r.rows) == 0:
		resp.SQL = DisplayCitiesQuery
		resp.AvailableCities = r.cities
	default:
		resp.SQL = r.statement
		for _, row := range r.rows {
			resp.Listings = append(resp.Listings, row.StripEmbeddings())
		}
	}
	return resp
}

type agentResult struct {
	answer *entities.AgentAnswer
}

func (r *agentResult) normalize() *entities.SearchResponse {
	listings := make([]entities.Listing, 0, len(r.answer.Rows))
	for _, row := range r.answer.Rows {
		listings = append(listings, entities.Listing(row).StripEmbeddings())
	}
	return &entities.SearchResponse{
		Listings: listings,
		SQL:      DisplayAgentHeader + "\n" + r.answer.GeneratedQuery,
		NLAnswer: r.answer.NaturalLanguageAnswer,
		Details: &entities.SearchDetails{
			GeneratedQuery:    r.answer.GeneratedQuery,
			IntentExplanation: r.answer.IntentExplanation,
			TotalRowCount:     r.answer.TotalRowCount,
		},
	}
}
