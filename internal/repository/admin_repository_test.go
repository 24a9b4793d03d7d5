package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRepositoryTableCounts(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAdminRepository(db)

	for i, table := range statusTables {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM " + table)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(i + 1)))
	}

	counts, err := repo.TableCounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, len(statusTables))
	assert.Equal(t, int64(1), counts["users"])
	assert.Equal(t, int64(5), counts["lecture_notes"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryDatabaseSize(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAdminRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_database_size(current_database())")).
		WillReturnRows(sqlmock.NewRows([]string{"size"}).AddRow(int64(8192)))

	size, err := repo.DatabaseSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8192), size)
}
