package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryUpsertKeepsNameWhenBlank(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"phone", "name", "created_at"}).
		AddRow("+79990000001", "Anna", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("+79990000001", "User_+79990000001", "", sqlmock.AnyArg()).
		WillReturnRows(rows)

	user, err := repo.Upsert(context.Background(), "+79990000001", "User_+79990000001", "")
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetSessionWithoutGroup(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"phone", "name", "group_id", "group_name", "university", "is_group_admin", "member_count"}).
		AddRow("+79990000001", "Anna", nil, nil, nil, false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN group_members gm")).
		WithArgs("+79990000001").
		WillReturnRows(rows)

	session, err := repo.GetSession(context.Background(), "+79990000001")
	require.NoError(t, err)
	assert.False(t, session.HasGroup())
	assert.Nil(t, session.MemberCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetSessionAdmin(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"phone", "name", "group_id", "group_name", "university", "is_group_admin", "member_count"}).
		AddRow("+79990000001", "Anna", int64(3), "Physics 101", "MSU", true, 4)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN group_members gm")).
		WithArgs("+79990000001").
		WillReturnRows(rows)

	session, err := repo.GetSession(context.Background(), "+79990000001")
	require.NoError(t, err)
	assert.True(t, session.AdminOf(3))
	require.NotNil(t, session.MemberCount)
	assert.Equal(t, 4, *session.MemberCount)
}

func TestUserRepositoryFindByPhoneMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT phone, name, created_at FROM users")).
		WithArgs("+79990000009").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByPhone(context.Background(), "+79990000009")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
