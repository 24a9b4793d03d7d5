package service

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/studygroup-api/internal/models"
	appErrors "github.com/noah-isme/studygroup-api/pkg/errors"
)

type adminRepository interface {
	TableCounts(ctx context.Context) (map[string]int64, error)
	DatabaseSize(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// AdminService reports operational state of the store and cache.
type AdminService struct {
	repo    adminRepository
	redis   *redis.Client
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAdminService constructs an AdminService. A nil redis client means Redis is disabled.
func NewAdminService(repo adminRepository, redisClient *redis.Client, metrics *MetricsService, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{repo: repo, redis: redisClient, metrics: metrics, logger: logger, now: time.Now}
}

// DBStatus returns table counts, database size and process metrics.
func (s *AdminService) DBStatus(ctx context.Context) (*models.DBStatus, error) {
	start := time.Now()
	tables, err := s.repo.TableCounts(ctx)
	s.metrics.ObserveDBQuery("table_counts", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count tables")
	}

	start = time.Now()
	size, err := s.repo.DatabaseSize(ctx)
	s.metrics.ObserveDBQuery("database_size", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read database size")
	}

	return &models.DBStatus{
		Tables:       tables,
		DatabaseSize: size,
		Redis:        s.redisUp(ctx),
		Metrics:      s.metrics.Snapshot(),
		GeneratedAt:  s.now().UTC(),
	}, nil
}

// Ready checks that the database answers.
func (s *AdminService) Ready(ctx context.Context) error {
	start := time.Now()
	err := s.repo.Ping(ctx)
	s.metrics.ObserveDBQuery("ping", time.Since(start))
	if err != nil {
		s.logger.Warn("database not ready", zap.Error(err))
		return appErrors.Wrap(err, "NOT_READY", http.StatusServiceUnavailable, "database unavailable")
	}
	return nil
}

func (s *AdminService) redisUp(ctx context.Context) bool {
	if s.redis == nil {
		return false
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		s.logger.Warn("redis ping failed", zap.Error(err))
		return false
	}
	return true
}
