package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type metricsCountRepository interface {
	Counts(ctx context.Context, userID, date string) (repository.AttendanceCounts, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the metrics snapshot shown on the dashboard.
type DashboardService struct {
	repo   metricsCountRepository
	cache  *CacheService
	days   Days
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo metricsCountRepository, cache *CacheService, days Days, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, days: days, logger: logger, cfg: cfg}
}

// Metrics returns the user's snapshot for today and whether it came from cache.
func (s *DashboardService) Metrics(ctx context.Context, userID string) (*models.MetricsSnapshot, bool, error) {
	today := s.days.Today()
	cacheKey := UserCacheKey(userID, "metrics", today)

	if snapshot, hit, err := s.tryCache(ctx, cacheKey); err != nil {
		s.logger.Warn("metrics cache read failed", zap.String("key", cacheKey), zap.Error(err))
	} else if hit {
		return snapshot, true, nil
	}

	counts, err := s.repo.Counts(ctx, userID, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute metrics")
	}
	snapshot := &models.MetricsSnapshot{
		TotalStudents:     counts.TotalStudents,
		TodayAttendance:   counts.TodayAttendance,
		TotalAttendance:   counts.TotalAttendance,
		AverageAttendance: models.AverageAttendance(counts.TotalAttendance, counts.TotalStudents),
		Date:              today,
	}
	s.persistCache(ctx, cacheKey, snapshot)
	return snapshot, false, nil
}

func (s *DashboardService) tryCache(ctx context.Context, key string) (*models.MetricsSnapshot, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	var cached models.MetricsSnapshot
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil || !hit {
		return nil, false, err
	}
	return &cached, true, nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("metrics cache write failed", zap.String("key", key), zap.Error(err))
	}
}
