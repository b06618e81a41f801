package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/propertysearch/backend/internal/domain/entities"
	"github.com/zatekoja/propertysearch/backend/internal/domain/repositories"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

const (
	listingSchema = "search"
	listingTable  = "property_listings"

	// DefaultHybridLimit is the number of rows a hybrid search returns
	DefaultHybridLimit = 20
)

var listingColumns = []interface{}{
	"id", "title", "description", "price", "city", "bedrooms", "image_gcs_uri",
}

// ListingAdapter implements ListingRepository
type ListingAdapter struct {
	client  *postgres.Client
	dialect goqu.DialectWrapper
	metrics *observability.Metrics
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.ListingRepository {
	return &ListingAdapter{
		client:  client,
		dialect: goqu.Dialect("postgres"),
		metrics: metrics,
	}
}

func listingsTable() exp.IdentifierExpression {
	return goqu.S(listingSchema).Table(listingTable)
}

// HybridScoreSQL renders the ranking expression. The weight is a literal
// number; the two vectors are bound as $1 and $2 in the final statement.
func HybridScoreSQL(weight float64, textVector, imageVector string) string {
	w := FormatWeight(weight)
	return fmt.Sprintf(
		"(%s * (1 - (description_embedding <=> %s::vector))) + ((1 - %s) * (1 - (image_embedding <=> %s::vector)))",
		w, textVector, w, imageVector,
	)
}

// FormatWeight renders a weight in its shortest exact decimal form
func FormatWeight(weight float64) string {
	return strconv.FormatFloat(weight, 'f', -1, 64)
}

// FormatVector renders an embedding as a pgvector literal
func FormatVector(values []float32) string {
	var b strings.Builder
	b.Grow(len(values) * 10)
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// BuildHybridQuery returns the hybrid ranking statement and its arguments
func BuildHybridQuery(q repositories.HybridQuery) (string, []interface{}, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHybridLimit
	}

	score := goqu.L(HybridScoreSQL(q.Weight, "?", "?"),
		FormatVector(q.TextEmbedding),
		FormatVector(q.ImageEmbedding),
	)

	return goqu.Dialect("postgres").
		From(listingsTable()).
		Prepared(true).
		Select(listingColumns...).
		Order(score.Desc()).
		Limit(uint(limit)).
		ToSQL()
}

// HybridSearch ranks listings by weighted text and image similarity
func (a *ListingAdapter) HybridSearch(ctx context.Context, q repositories.HybridQuery) ([]entities.Listing, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := BuildHybridQuery(q)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build hybrid query", err)
	}

	start := time.Now()
	var properties []*entities.Property
	err = db.SelectContext(ctx, &properties, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "hybrid_search", time.Since(start))
	if err != nil {
		return nil, apperrors.NewDatabaseError("hybrid search failed", err)
	}

	listings := make([]entities.Listing, 0, len(properties))
	for _, p := range properties {
		listings = append(listings, p.ToListing())
	}
	return listings, nil
}

// GenerateSQL asks alloydb_ai_nl for a statement. An empty string means the
// function could not produce one.
func (a *ListingAdapter) GenerateSQL(ctx context.Context, configID, prompt string) (string, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	var generated sql.NullString
	err = db.QueryRowxContext(ctx, `SELECT alloydb_ai_nl.get_sql($1, $2) ->> 'sql'`, configID, prompt).Scan(&generated)
	observability.RecordDBMetric(ctx, a.metrics, "generate_sql", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewDatabaseError("failed to generate SQL", err)
	}

	return strings.TrimSpace(generated.String), nil
}

// ExecuteReadOnly runs a generated statement inside a READ ONLY transaction
// and returns every row as a listing without its embedding columns.
func (a *ListingAdapter) ExecuteReadOnly(ctx context.Context, statement string) ([]entities.Listing, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, "execute_generated", time.Since(start)) }()

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to begin read only transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryxContext(ctx, statement)
	if err != nil {
		return nil, apperrors.NewDatabaseError("generated statement failed", err)
	}
	defer rows.Close()

	numeric := numericColumns(rows)

	listings := []entities.Listing{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, apperrors.NewDatabaseError("failed to scan generated row", err)
		}
		listings = append(listings, normalizeRow(row, numeric).StripEmbeddings())
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("failed to read generated rows", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("failed to close read only transaction", err)
	}
	return listings, nil
}

// DistinctCities returns every city that has at least one listing
func (a *ListingAdapter) DistinctCities(ctx context.Context) ([]string, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := a.dialect.From(listingsTable()).
		Select(goqu.C("city")).
		Distinct().
		Order(goqu.C("city").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build cities query", err)
	}

	start := time.Now()
	var raw []sql.NullString
	err = db.SelectContext(ctx, &raw, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "distinct_cities", time.Since(start))
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to list cities", err)
	}

	cities := make([]string, 0, len(raw))
	for _, c := range raw {
		if c.Valid {
			cities = append(cities, c.String)
		}
	}
	return cities, nil
}

// List returns stored properties ordered by id
func (a *ListingAdapter) List(ctx context.Context, limit, offset int) ([]*entities.Property, error) {
	db, err := a.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	ds := a.dialect.From(listingsTable()).
		Prepared(true).
		Select(listingColumns...).
		Order(goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	start := time.Now()
	properties := []*entities.Property{}
	err = db.SelectContext(ctx, &properties, query, args...)
	observability.RecordDBMetric(ctx, a.metrics, "list_listings", time.Since(start))
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to list properties", err)
	}
	return properties, nil
}

func numericColumns(rows *sqlx.Rows) map[string]bool {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil
	}
	numeric := make(map[string]bool)
	for _, ct := range types {
		switch strings.ToUpper(ct.DatabaseTypeName()) {
		case "NUMERIC", "DECIMAL", "FLOAT4", "FLOAT8":
			numeric[ct.Name()] = true
		}
	}
	return numeric
}

// normalizeRow turns driver byte slices into JSON friendly values
func normalizeRow(row map[string]interface{}, numeric map[string]bool) entities.Listing {
	listing := make(entities.Listing, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			s := string(b)
			if numeric[k] {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					listing[k] = f
					continue
				}
			}
			listing[k] = s
			continue
		}
		listing[k] = v
	}
	return listing
}
