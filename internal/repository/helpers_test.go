package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: pqUniqueViolation, Constraint: constraint}
}

var eventColumnNames = []string{"id", "group_id", "title", "day", "time_slot", "time_start", "time_end", "location", "teacher", "type", "week_number", "created_at"}
