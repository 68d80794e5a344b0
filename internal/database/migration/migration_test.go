package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagateway/internal/model"
)

func TestEnsureMigrated_FreshDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	defaults := map[model.Category]*model.CategoryPolicy{
		model.CategoryImage: model.NewCategoryPolicy(model.CategoryImage, 100, "image/png", "image/jpeg"),
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass('public.media_records') IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	for range steps {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("INSERT INTO category_policies").
		WithArgs("image", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO category_content_types").
		WithArgs("image", "image/jpeg").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO category_content_types").
		WithArgs("image", "image/png").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = EnsureMigrated(context.Background(), db, zerolog.Nop(), "localhost", defaults)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_ExistingSchemaKeepsStoredPolicy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	defaults := map[model.Category]*model.CategoryPolicy{
		model.CategoryBook: model.NewCategoryPolicy(model.CategoryBook, 5, "application/pdf"),
	}

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO category_policies").
		WithArgs("book", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = EnsureMigrated(context.Background(), db, zerolog.Nop(), "localhost", defaults)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_StepFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New("permission denied"))

	err = EnsureMigrated(context.Background(), db, zerolog.Nop(), "localhost", nil)

	assert.ErrorContains(t, err, "migration step create_extension_uuid_ossp failed: permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_SentinelFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("conn refused"))

	err = EnsureMigrated(context.Background(), db, zerolog.Nop(), "localhost", nil)

	assert.ErrorContains(t, err, "failed to check sentinel table")
	assert.NoError(t, mock.ExpectationsWereMet())
}
