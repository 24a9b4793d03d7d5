package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studygroup-api/internal/models"
)

var noteColumnNames = []string{
	"id", "group_id", "schedule_event_id", "title", "content", "audio_transcript", "slides_text", "file_name",
	"audio_url", "image_urls", "image_count", "created_by", "created_at", "event_title", "event_day", "event_week",
}

func TestLectureNoteRepositoryFindDanglingEvent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	rows := sqlmock.NewRows(noteColumnNames).
		AddRow(1, 2, nil, "Limits", "", nil, nil, nil, nil, []byte("[]"), 0, "+79990000001", time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN schedule_events e ON e.id = n.schedule_event_id WHERE n.id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	note, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, note.Attached())
}

func TestLectureNoteRepositoryListPersonal(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	groupID := int64(2)
	attached := false
	rows := sqlmock.NewRows(noteColumnNames).
		AddRow(3, nil, nil, "Own", "", nil, nil, nil, nil, []byte("[]"), 0, "+79990000001", time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE n.created_by = $1 AND n.group_id IS NULL AND e.id IS NULL ORDER BY n.created_at DESC, n.id DESC LIMIT 10 OFFSET 10")).
		WithArgs("+79990000001").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecture_notes n")).
		WithArgs("+79990000001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	notes, total, err := repo.List(context.Background(), models.NoteFilter{
		Phone:    "+79990000001",
		GroupID:  &groupID,
		Scope:    models.NoteScopePersonal,
		Attached: &attached,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryListAllWithEventFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	groupID := int64(2)
	eventID := int64(5)
	week := 2
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (n.created_by = $1 OR n.group_id = $2) AND e.id = $3 AND e.week_number = $4")).
		WithArgs("+79990000001", groupID, eventID, week).
		WillReturnRows(sqlmock.NewRows(noteColumnNames))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("+79990000001", groupID, eventID, week).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	notes, total, err := repo.List(context.Background(), models.NoteFilter{
		Phone:   "+79990000001",
		GroupID: &groupID,
		EventID: &eventID,
		Week:    &week,
	})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryListGroupScopeWithoutGroup(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	notes, total, err := repo.List(context.Background(), models.NoteFilter{Phone: "+79990000001", Scope: models.NoteScopeGroup})
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryAttachOverCap(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedule_events WHERE id = $1 AND group_id = $2 FOR UPDATE")).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecture_notes WHERE schedule_event_id = $1 AND id <> $2")).
		WithArgs(int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Attach(context.Background(), 9, AttachParams{EventID: 5, GroupID: 2, MaxNotes: 2})
	assert.ErrorIs(t, err, ErrAttachLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryAttachToForeignEvent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedule_events")).
		WithArgs(int64(5), int64(3)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Attach(context.Background(), 9, AttachParams{EventID: 5, GroupID: 3, MaxNotes: 2})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryCreateAttached(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedule_events")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecture_notes")).
		WithArgs(int64(5), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO lecture_notes")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectCommit()

	groupID := int64(2)
	note := &models.LectureNote{GroupID: &groupID, Title: "Limits", CreatedBy: "+79990000001"}
	require.NoError(t, repo.Create(context.Background(), note, &AttachParams{EventID: 5, GroupID: 2, MaxNotes: 2}))
	assert.Equal(t, int64(12), note.ID)
	require.NotNil(t, note.ScheduleEventID)
	assert.Equal(t, int64(5), *note.ScheduleEventID)
	assert.JSONEq(t, "[]", string(note.ImageURLs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLectureNoteRepositoryDeleteMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewLectureNoteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lecture_notes WHERE id = $1")).
		WithArgs(int64(77)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), 77)
	require.NoError(t, err)
	assert.False(t, ok)
}
