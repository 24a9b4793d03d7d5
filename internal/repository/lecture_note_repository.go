package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studygroup-api/internal/models"
)

// The event is joined at query time; a dangling schedule_event_id therefore
// reads back as NULL and the note lists as unattached.
const noteSelect = `SELECT
	n.id,
	n.group_id,
	e.id AS schedule_event_id,
	n.title,
	n.content,
	n.audio_transcript,
	n.slides_text,
	n.file_name,
	n.audio_url,
	n.image_urls,
	n.image_count,
	n.created_by,
	n.created_at,
	e.title AS event_title,
	e.day AS event_day,
	e.week_number AS event_week
FROM lecture_notes n
LEFT JOIN schedule_events e ON e.id = n.schedule_event_id`

// AttachParams names the event a note attaches to and the cap enforced.
type AttachParams struct {
	EventID  int64
	GroupID  int64
	MaxNotes int
}

// LectureNoteRepository persists lecture notes.
type LectureNoteRepository struct {
	db *sqlx.DB
}

// NewLectureNoteRepository constructs the repository.
func NewLectureNoteRepository(db *sqlx.DB) *LectureNoteRepository {
	return &LectureNoteRepository{db: db}
}

// FindByID returns the note with its event fields or an error wrapping
// sql.ErrNoRows.
func (r *LectureNoteRepository) FindByID(ctx context.Context, id int64) (*models.LectureNote, error) {
	query := noteSelect + ` WHERE n.id = $1`
	var note models.LectureNote
	if err := r.db.GetContext(ctx, &note, query, id); err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	return &note, nil
}

// List returns notes visible under the filter scope with the total count.
func (r *LectureNoteRepository) List(ctx context.Context, filter models.NoteFilter) ([]models.LectureNote, int, error) {
	var conditions []string
	args := []interface{}{filter.Phone}

	switch filter.Scope {
	case models.NoteScopePersonal:
		conditions = append(conditions, "n.created_by = $1 AND n.group_id IS NULL")
	case models.NoteScopeGroup:
		if filter.GroupID == nil {
			return []models.LectureNote{}, 0, nil
		}
		args = append(args, *filter.GroupID)
		conditions = append(conditions, fmt.Sprintf("n.group_id = $%d", len(args)))
	default:
		if filter.GroupID != nil {
			args = append(args, *filter.GroupID)
			conditions = append(conditions, fmt.Sprintf("(n.created_by = $1 OR n.group_id = $%d)", len(args)))
		} else {
			conditions = append(conditions, "n.created_by = $1")
		}
	}

	if filter.Attached != nil {
		if *filter.Attached {
			conditions = append(conditions, "e.id IS NOT NULL")
		} else {
			conditions = append(conditions, "e.id IS NULL")
		}
	}
	if filter.EventID != nil {
		args = append(args, *filter.EventID)
		conditions = append(conditions, fmt.Sprintf("e.id = $%d", len(args)))
	}
	if filter.Week != nil {
		args = append(args, *filter.Week)
		conditions = append(conditions, fmt.Sprintf("e.week_number = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY n.created_at DESC, n.id DESC LIMIT %d OFFSET %d", noteSelect, where, pageSize, offset)
	notes := []models.LectureNote{}
	if err := r.db.SelectContext(ctx, &notes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM lecture_notes n LEFT JOIN schedule_events e ON e.id = n.schedule_event_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}
	return notes, total, nil
}

// CountAttached returns how many notes reference the event.
func (r *LectureNoteRepository) CountAttached(ctx context.Context, eventID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM lecture_notes WHERE schedule_event_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count attached notes: %w", err)
	}
	return count, nil
}

// Create inserts the note. When attach is set the note is attached in the
// same transaction under the event's cap.
func (r *LectureNoteRepository) Create(ctx context.Context, note *models.LectureNote, attach *AttachParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create note transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	note.ScheduleEventID = nil
	if attach != nil {
		if err = reserveAttachSlot(ctx, tx, 0, *attach); err != nil {
			return err
		}
		eventID := attach.EventID
		note.ScheduleEventID = &eventID
	}
	if len(note.ImageURLs) == 0 {
		note.ImageURLs = []byte("[]")
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}

	const insertQuery = `INSERT INTO lecture_notes (group_id, schedule_event_id, title, content, audio_transcript, slides_text, file_name, audio_url, image_urls, image_count, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	if err = tx.GetContext(ctx, &note.ID, insertQuery,
		note.GroupID, note.ScheduleEventID, note.Title, note.Content, note.AudioTranscript, note.SlidesText,
		note.FileName, note.AudioURL, note.ImageURLs, note.ImageCount, note.CreatedBy, note.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create note: %w", err)
	}
	return nil
}

// Attach points the note at the event under the event's cap. Re-attaching to
// the same event succeeds because the note itself is not counted.
func (r *LectureNoteRepository) Attach(ctx context.Context, noteID int64, attach AttachParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attach transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = reserveAttachSlot(ctx, tx, noteID, attach); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE lecture_notes SET schedule_event_id = $1 WHERE id = $2`, attach.EventID, noteID)
	if err != nil {
		return fmt.Errorf("attach note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach note rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit attach: %w", err)
	}
	return nil
}

// reserveAttachSlot locks the event row and checks that it belongs to the
// group and has room for one more note besides noteID.
func reserveAttachSlot(ctx context.Context, tx *sqlx.Tx, noteID int64, attach AttachParams) error {
	var locked int64
	const lockQuery = `SELECT id FROM schedule_events WHERE id = $1 AND group_id = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &locked, lockQuery, attach.EventID, attach.GroupID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock event: %w", err)
	}

	var count int
	const countQuery = `SELECT COUNT(*) FROM lecture_notes WHERE schedule_event_id = $1 AND id <> $2`
	if err := tx.GetContext(ctx, &count, countQuery, attach.EventID, noteID); err != nil {
		return fmt.Errorf("count attached notes: %w", err)
	}
	if count >= attach.MaxNotes {
		return ErrAttachLimit
	}
	return nil
}

// Detach clears the note's event reference.
func (r *LectureNoteRepository) Detach(ctx context.Context, noteID int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE lecture_notes SET schedule_event_id = NULL WHERE id = $1`, noteID); err != nil {
		return fmt.Errorf("detach note: %w", err)
	}
	return nil
}

// UpdateTitle renames the note and reports whether it exists.
func (r *LectureNoteRepository) UpdateTitle(ctx context.Context, noteID int64, title string) (bool, error) {
	return r.execAffecting(ctx, "update note title", `UPDATE lecture_notes SET title = $1 WHERE id = $2`, title, noteID)
}

// Delete removes the note and reports whether it existed.
func (r *LectureNoteRepository) Delete(ctx context.Context, noteID int64) (bool, error) {
	return r.execAffecting(ctx, "delete note", `DELETE FROM lecture_notes WHERE id = $1`, noteID)
}

// SetAudioURL replaces the note's audio reference.
func (r *LectureNoteRepository) SetAudioURL(ctx context.Context, noteID int64, url string) (bool, error) {
	return r.execAffecting(ctx, "set note audio", `UPDATE lecture_notes SET audio_url = $1 WHERE id = $2`, url, noteID)
}

// AppendImageURL adds an image reference and bumps the image count.
func (r *LectureNoteRepository) AppendImageURL(ctx context.Context, noteID int64, url string) (bool, error) {
	const query = `UPDATE lecture_notes
SET image_urls = COALESCE(image_urls, '[]'::jsonb) || jsonb_build_array($1::text),
	image_count = image_count + 1
WHERE id = $2`
	return r.execAffecting(ctx, "append note image", query, url, noteID)
}

func (r *LectureNoteRepository) execAffecting(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	return affected > 0, nil
}
