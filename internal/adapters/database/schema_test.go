package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
)

func TestSchema_DeclaresQueriedColumns(t *testing.T) {
	for _, column := range append(listingColumns, "description_embedding", "image_embedding") {
		assert.Contains(t, Schema, column)
	}
	for column := range historyFilterColumns {
		assert.Contains(t, Schema, column)
	}
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+historyTable)
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+listingSchema+"."+listingTable)
}

func TestApplySchema(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ApplySchema(context.Background(), client))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySchema_Failure(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("CREATE").WillReturnError(errors.New(`extension "vector" is not available`))

	err := ApplySchema(context.Background(), client)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeDatabase))
}
