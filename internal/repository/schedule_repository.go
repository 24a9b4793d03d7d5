package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studygroup-api/internal/models"
)

const eventColumns = `id, group_id, title, day, time_slot, time_start, time_end, location, teacher, type, week_number, created_at`

const slotConstraint = "schedule_events_slot_unique"

// ScheduleRepository persists schedule events.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListByWeek returns a group's events of one week ordered by day and time.
func (r *ScheduleRepository) ListByWeek(ctx context.Context, groupID int64, week int) ([]models.ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events WHERE group_id = $1 AND week_number = $2 ORDER BY id ASC`
	var events []models.ScheduleEvent
	if err := r.db.SelectContext(ctx, &events, query, groupID, week); err != nil {
		return nil, fmt.Errorf("list week events: %w", err)
	}
	models.SortEvents(events)
	return events, nil
}

// ListByGroup returns events of both weeks.
func (r *ScheduleRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events WHERE group_id = $1 ORDER BY week_number ASC, id ASC`
	var events []models.ScheduleEvent
	if err := r.db.SelectContext(ctx, &events, query, groupID); err != nil {
		return nil, fmt.Errorf("list group events: %w", err)
	}
	models.SortEvents(events)
	return events, nil
}

// CountByWeek returns event totals keyed by week number.
func (r *ScheduleRepository) CountByWeek(ctx context.Context, groupID int64) (map[int]int, error) {
	const query = `SELECT week_number, COUNT(*) AS total FROM schedule_events WHERE group_id = $1 GROUP BY week_number`
	var rows []struct {
		Week  int `db:"week_number"`
		Total int `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("count week events: %w", err)
	}
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.Week] = row.Total
	}
	return counts, nil
}

// FindByID returns an event or an error wrapping sql.ErrNoRows.
func (r *ScheduleRepository) FindByID(ctx context.Context, id int64) (*models.ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events WHERE id = $1`
	var event models.ScheduleEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

// CreateChecked inserts the event after check accepts the week's current
// events. The group row is locked for the duration so concurrent inserts into
// the same group see each other's rows. A unique slot violation surfaces as
// ErrSlotTaken.
func (r *ScheduleRepository) CreateChecked(ctx context.Context, event *models.ScheduleEvent, check func(existing []models.ScheduleEvent) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create event transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked int64
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM groups WHERE id = $1 FOR UPDATE`, event.GroupID); err != nil {
		return fmt.Errorf("lock group: %w", err)
	}

	var existing []models.ScheduleEvent
	listQuery := `SELECT ` + eventColumns + ` FROM schedule_events WHERE group_id = $1 AND week_number = $2`
	if err = tx.SelectContext(ctx, &existing, listQuery, event.GroupID, event.WeekNumber); err != nil {
		return fmt.Errorf("load week events: %w", err)
	}
	if err = check(existing); err != nil {
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const insertQuery = `INSERT INTO schedule_events (group_id, title, day, time_slot, time_start, time_end, location, teacher, type, week_number, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if err = tx.GetContext(ctx, &event.ID, insertQuery,
		event.GroupID, event.Title, event.Day, event.TimeSlot, event.TimeStart, event.TimeEnd,
		event.Location, event.Teacher, event.Type, event.WeekNumber, event.CreatedAt,
	); err != nil {
		if isUniqueViolation(err, slotConstraint) {
			err = ErrSlotTaken
			return err
		}
		return fmt.Errorf("insert event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create event: %w", err)
	}
	return nil
}

// Delete removes a group's event and detaches its notes in one transaction.
// It returns sql.ErrNoRows when the event is not in the group.
func (r *ScheduleRepository) Delete(ctx context.Context, groupID, eventID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete event transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked int64
	const lockQuery = `SELECT id FROM schedule_events WHERE id = $1 AND group_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &locked, lockQuery, eventID, groupID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock event: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE lecture_notes SET schedule_event_id = NULL WHERE schedule_event_id = $1`, eventID); err != nil {
		return fmt.Errorf("detach event notes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete event: %w", err)
	}
	return nil
}
