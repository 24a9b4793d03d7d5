package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studygroup-api/internal/models"
)

// UserRepository persists users and derives their sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user on first login. An existing user keeps their name
// unless a non-empty name is supplied.
func (r *UserRepository) Upsert(ctx context.Context, phone, defaultName, name string) (*models.User, error) {
	const query = `INSERT INTO users (phone, name, created_at)
VALUES ($1, CASE WHEN $3 <> '' THEN $3 ELSE $2 END, $4)
ON CONFLICT (phone) DO UPDATE
SET name = CASE WHEN $3 <> '' THEN $3 ELSE users.name END
RETURNING phone, name, created_at`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, phone, defaultName, name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}

// FindByPhone returns the user or an error wrapping sql.ErrNoRows.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	const query = `SELECT phone, name, created_at FROM users WHERE phone = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, phone); err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// GetSession derives the caller's group facts from current membership rows.
func (r *UserRepository) GetSession(ctx context.Context, phone string) (*models.Session, error) {
	const query = `
SELECT
	u.phone,
	u.name,
	g.id AS group_id,
	g.name AS group_name,
	g.university,
	COALESCE(g.admin_phone = u.phone, FALSE) AS is_group_admin,
	CASE WHEN g.id IS NULL THEN NULL
		ELSE (SELECT COUNT(*) FROM group_members cnt WHERE cnt.group_id = g.id)
	END AS member_count
FROM users u
LEFT JOIN group_members gm ON gm.user_phone = u.phone
LEFT JOIN groups g ON g.id = gm.group_id
WHERE u.phone = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, phone); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &session, nil
}
