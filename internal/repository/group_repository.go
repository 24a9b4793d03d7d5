package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studygroup-api/internal/models"
)

const groupColumns = `g.id, g.name, g.university, g.admin_phone, g.max_members, g.invite_token, g.created_at`

const singleGroupConstraint = "group_members_single_group"

// GroupRepository persists groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns the group or an error wrapping sql.ErrNoRows.
func (r *GroupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// FindByMember returns the group the phone belongs to or an error wrapping
// sql.ErrNoRows.
func (r *GroupRepository) FindByMember(ctx context.Context, phone string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g JOIN group_members gm ON gm.group_id = g.id WHERE gm.user_phone = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, phone); err != nil {
		return nil, fmt.Errorf("find group by member: %w", err)
	}
	return &group, nil
}

// CountMembers returns the number of membership rows of the group.
func (r *GroupRepository) CountMembers(ctx context.Context, groupID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM group_members WHERE group_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// ListMembers returns member phones in join order.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID int64) ([]string, error) {
	const query = `SELECT user_phone FROM group_members WHERE group_id = $1 ORDER BY joined_at ASC, user_phone ASC`
	var phones []string
	if err := r.db.SelectContext(ctx, &phones, query, groupID); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return phones, nil
}

// IsMember reports whether the phone belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID int64, phone string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_phone = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, groupID, phone); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// Create inserts the group with its admin as sole member and stores the
// invite token derived from the new id, in one transaction.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group, tokenFor func(int64) string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create group transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var member bool
	const memberQuery = `SELECT EXISTS (SELECT 1 FROM group_members WHERE user_phone = $1)`
	if err = tx.GetContext(ctx, &member, memberQuery, group.AdminPhone); err != nil {
		return fmt.Errorf("check creator membership: %w", err)
	}
	if member {
		err = ErrAlreadyMember
		return err
	}

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	const insertGroup = `INSERT INTO groups (name, university, admin_phone, max_members, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err = tx.GetContext(ctx, &group.ID, insertGroup, group.Name, group.University, group.AdminPhone, group.MaxMembers, group.CreatedAt); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	const insertMember = `INSERT INTO group_members (group_id, user_phone, joined_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertMember, group.ID, group.AdminPhone, group.CreatedAt); err != nil {
		if isUniqueViolation(err, singleGroupConstraint) {
			err = ErrAlreadyMember
			return err
		}
		return fmt.Errorf("insert group admin membership: %w", err)
	}

	token := tokenFor(group.ID)
	const updateToken = `UPDATE groups SET invite_token = $1 WHERE id = $2`
	if _, err = tx.ExecContext(ctx, updateToken, token, group.ID); err != nil {
		return fmt.Errorf("store invite token: %w", err)
	}
	group.InviteToken = &token

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create group: %w", err)
	}
	return nil
}

// AddMember joins the phone to the group. The group row is locked so that the
// member cap holds under concurrent joins. Failure order: missing group
// (an error wrapping sql.ErrNoRows), ErrGroupFull, ErrAlreadyMember.
func (r *GroupRepository) AddMember(ctx context.Context, groupID int64, phone string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin join transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxMembers int
	const lockQuery = `SELECT max_members FROM groups WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &maxMembers, lockQuery, groupID); err != nil {
		return fmt.Errorf("lock group: %w", err)
	}

	var count int
	const countQuery = `SELECT COUNT(*) FROM group_members WHERE group_id = $1`
	if err = tx.GetContext(ctx, &count, countQuery, groupID); err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if count >= maxMembers {
		err = ErrGroupFull
		return err
	}

	var member bool
	const memberQuery = `SELECT EXISTS (SELECT 1 FROM group_members WHERE user_phone = $1)`
	if err = tx.GetContext(ctx, &member, memberQuery, phone); err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member {
		err = ErrAlreadyMember
		return err
	}

	const insertMember = `INSERT INTO group_members (group_id, user_phone, joined_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertMember, groupID, phone, time.Now().UTC()); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrAlreadyMember
			return err
		}
		return fmt.Errorf("insert membership: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit join: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership and reports whether one existed.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID int64, phone string) (bool, error) {
	const query = `DELETE FROM group_members WHERE group_id = $1 AND user_phone = $2`
	res, err := r.db.ExecContext(ctx, query, groupID, phone)
	if err != nil {
		return false, fmt.Errorf("remove membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove membership rows: %w", err)
	}
	return affected > 0, nil
}

// TransferAdmin moves admin rights with a compare-and-set on the current
// admin. It reports false when from is no longer admin or to is not a member.
func (r *GroupRepository) TransferAdmin(ctx context.Context, groupID int64, from, to string) (bool, error) {
	const query = `UPDATE groups SET admin_phone = $1
WHERE id = $2 AND admin_phone = $3
AND EXISTS (SELECT 1 FROM group_members WHERE group_id = $2 AND user_phone = $1)`
	res, err := r.db.ExecContext(ctx, query, to, groupID, from)
	if err != nil {
		return false, fmt.Errorf("transfer admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transfer admin rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes the group, its memberships and events, and detaches its
// notes, in one transaction.
func (r *GroupRepository) Delete(ctx context.Context, groupID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete group transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const detachNotes = `UPDATE lecture_notes SET schedule_event_id = NULL, group_id = NULL
WHERE group_id = $1 OR schedule_event_id IN (SELECT id FROM schedule_events WHERE group_id = $1)`
	if _, err = tx.ExecContext(ctx, detachNotes, groupID); err != nil {
		return fmt.Errorf("detach group notes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schedule_events WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group events: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group members: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete group: %w", err)
	}
	return nil
}
