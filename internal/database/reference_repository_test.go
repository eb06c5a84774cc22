package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
)

func newReferenceRepo(t *testing.T) (*database.ReferenceRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return database.NewReferenceRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestReferenceRepository_Upsert(t *testing.T) {
	repo, mock := newReferenceRepo(t)

	mock.ExpectExec(`INSERT INTO metasys_enums .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(int64(165), "Analog Value", int64(508)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), domain.ReferenceEntry{ID: 165, Description: "Analog Value", EnumSet: 508})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_Get(t *testing.T) {
	repo, mock := newReferenceRepo(t)

	mock.ExpectQuery(`SELECT id, description, enumset FROM metasys_enums WHERE id = \$1`).
		WithArgs(int64(165)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "description", "enumset"}).AddRow(165, "Analog Value", 508))

	entry, err := repo.Get(context.Background(), 165)
	require.NoError(t, err)
	assert.Equal(t, "Analog Value", entry.Description)
	assert.Equal(t, int64(508), entry.EnumSet)
}

func TestReferenceRepository_GetNotFound(t *testing.T) {
	repo, mock := newReferenceRepo(t)

	mock.ExpectQuery(`FROM metasys_enums`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 9999)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestReferenceRepository_CountByEnumSet(t *testing.T) {
	repo, mock := newReferenceRepo(t)

	mock.ExpectQuery(`SELECT enumset, COUNT\(\*\) FROM metasys_enums GROUP BY enumset`).
		WillReturnRows(sqlmock.NewRows([]string{"enumset", "count"}).AddRow(507, 12).AddRow(508, 433))

	counts, err := repo.CountByEnumSet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{507: 12, 508: 433}, counts)
}
