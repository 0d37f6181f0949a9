package clientcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/localcache"
	"github.com/noah-isme/attendance-api/internal/models"
)

type metricsAPI interface {
	Metrics(ctx context.Context) (*models.MetricsSnapshot, error)
}

// MetricsService caches the dashboard snapshot.
type MetricsService struct {
	api    metricsAPI
	store  *localcache.Store
	logger *zap.Logger
}

// NewMetricsService constructs a MetricsService.
func NewMetricsService(api metricsAPI, store *localcache.Store, logger *zap.Logger) *MetricsService {
	return &MetricsService{api: api, store: store, logger: orNop(logger)}
}

// GetMetrics returns the cached snapshot or fetches it.
func (s *MetricsService) GetMetrics(ctx context.Context) (*models.MetricsSnapshot, error) {
	return cached(ctx, s.store, s.logger, KeyMetrics, DefaultTTL, s.api.Metrics)
}

// InvalidateCache drops the cached snapshot.
func (s *MetricsService) InvalidateCache(ctx context.Context) error {
	return remove(ctx, s.store, s.logger, KeyMetrics)
}

type historyAPI interface {
	AttendanceHistory(ctx context.Context, from, to string) ([]models.AttendanceHistoryPoint, error)
}

// AttendanceHistoryService caches the per-day check-in series.
type AttendanceHistoryService struct {
	api    historyAPI
	store  *localcache.Store
	logger *zap.Logger
}

// NewAttendanceHistoryService constructs an AttendanceHistoryService.
func NewAttendanceHistoryService(api historyAPI, store *localcache.Store, logger *zap.Logger) *AttendanceHistoryService {
	return &AttendanceHistoryService{api: api, store: store, logger: orNop(logger)}
}

// GetHistory returns the full history series.
func (s *AttendanceHistoryService) GetHistory(ctx context.Context) ([]models.AttendanceHistoryPoint, error) {
	return cached(ctx, s.store, s.logger, KeyAttendanceHistory, DefaultTTL, func(ctx context.Context) ([]models.AttendanceHistoryPoint, error) {
		points, err := s.api.AttendanceHistory(ctx, "", "")
		if points == nil && err == nil {
			points = []models.AttendanceHistoryPoint{}
		}
		return points, err
	})
}

// InvalidateCache drops the cached series.
func (s *AttendanceHistoryService) InvalidateCache(ctx context.Context) error {
	return remove(ctx, s.store, s.logger, KeyAttendanceHistory)
}
