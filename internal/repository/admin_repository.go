package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// statusTables are the tables reported by the operator status endpoint.
var statusTables = []string{"users", "groups", "group_members", "schedule_events", "lecture_notes"}

// AdminRepository reads store-wide statistics.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// TableCounts returns row counts for every application table.
func (r *AdminRepository) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(statusTables))
	for _, table := range statusTables {
		var count int64
		if err := r.db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

// DatabaseSize returns the on-disk size of the current database in bytes.
func (r *AdminRepository) DatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	if err := r.db.GetContext(ctx, &size, `SELECT pg_database_size(current_database())`); err != nil {
		return 0, fmt.Errorf("database size: %w", err)
	}
	return size, nil
}

// Ping checks connectivity.
func (r *AdminRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
