package database

import (
	"context"
	_ "embed"

	"github.com/zatekoja/propertysearch/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

// Schema creates the listings and history tables. Every statement is idempotent.
//
//go:embed sql/schema.sql
var Schema string

// ApplySchema runs Schema as one simple-protocol script
func ApplySchema(ctx context.Context, client *postgres.Client) error {
	db, err := client.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return apperrors.NewDatabaseError("failed to apply schema", err)
	}
	return nil
}
