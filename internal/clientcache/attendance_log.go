package clientcache

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/localcache"
	"github.com/noah-isme/attendance-api/internal/models"
)

type attendanceAPI interface {
	DailyAttendance(ctx context.Context, date string) ([]models.DailyAttendanceEntry, error)
	TotalAttendances(ctx context.Context, ids []string) (map[string]int, error)
	RemoveAttendance(ctx context.Context, req models.RemoveAttendanceRequest) error
}

// AttendanceLogService caches daily logs and per-student totals.
type AttendanceLogService struct {
	api    attendanceAPI
	store  *localcache.Store
	logger *zap.Logger
}

// NewAttendanceLogService constructs an AttendanceLogService.
func NewAttendanceLogService(api attendanceAPI, store *localcache.Store, logger *zap.Logger) *AttendanceLogService {
	return &AttendanceLogService{api: api, store: store, logger: orNop(logger)}
}

// GetDailyAttendance returns the check-ins of date (YYYY-MM-DD).
func (s *AttendanceLogService) GetDailyAttendance(ctx context.Context, date string) ([]models.DailyAttendanceEntry, error) {
	return cached(ctx, s.store, s.logger, DailyKey(date), DefaultTTL, func(ctx context.Context) ([]models.DailyAttendanceEntry, error) {
		entries, err := s.api.DailyAttendance(ctx, date)
		if entries == nil && err == nil {
			entries = []models.DailyAttendanceEntry{}
		}
		return entries, err
	})
}

// GetTotalAttendances returns a total for every id. Fresh per-id entries are served from cache and
// the rest are fetched in one request; nothing is fetched when every id is cached.
func (s *AttendanceLogService) GetTotalAttendances(ctx context.Context, ids []string) (map[string]int, error) {
	totals := make(map[string]int, len(ids))
	var misses []string
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, seen := totals[id]; seen {
			continue
		}
		var n int
		hit, err := s.store.Get(ctx, TotalKey(id), DefaultTTL, &n)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("key", TotalKey(id)), zap.Error(err))
		}
		totals[id] = n
		if !hit {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return totals, nil
	}

	fetched, err := s.api.TotalAttendances(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, id := range misses {
		n := fetched[id]
		totals[id] = n
		if err := s.store.Set(ctx, TotalKey(id), n, DefaultTTL); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", TotalKey(id)), zap.Error(err))
		}
	}
	return totals, nil
}

// RemoveAttendance deletes a check-in. The cached daily log and total are patched first and
// restored exactly if the request fails, in which case the request error is returned.
func (s *AttendanceLogService) RemoveAttendance(ctx context.Context, studentID, date string) error {
	dailyKey, totalKey := DailyKey(date), TotalKey(studentID)
	dailySnap, err := s.store.Peek(ctx, dailyKey)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", dailyKey), zap.Error(err))
	}
	totalSnap, err := s.store.Peek(ctx, totalKey)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", totalKey), zap.Error(err))
	}

	s.patchDaily(ctx, dailyKey, dailySnap, studentID)
	s.patchTotal(ctx, totalKey, totalSnap)

	if err := s.api.RemoveAttendance(ctx, models.RemoveAttendanceRequest{StudentID: studentID, Date: date}); err != nil {
		s.restore(ctx, dailyKey, dailySnap)
		s.restore(ctx, totalKey, totalSnap)
		return err
	}

	_ = remove(ctx, s.store, s.logger, KeyMetrics, KeyAttendanceHistory)
	return nil
}

// InvalidateCache drops the daily log of date and the totals of studentIDs.
func (s *AttendanceLogService) InvalidateCache(ctx context.Context, date string, studentIDs ...string) error {
	keys := make([]string, 0, len(studentIDs)+1)
	if date != "" {
		keys = append(keys, DailyKey(date))
	}
	for _, id := range studentIDs {
		keys = append(keys, TotalKey(id))
	}
	return remove(ctx, s.store, s.logger, keys...)
}

func (s *AttendanceLogService) patchDaily(ctx context.Context, key string, snap *localcache.Envelope, studentID string) {
	if snap == nil {
		return
	}
	var entries []models.DailyAttendanceEntry
	if err := snap.Decode(&entries); err != nil {
		return
	}
	kept := make([]models.DailyAttendanceEntry, 0, len(entries))
	for _, e := range entries {
		if e.StudentID != studentID {
			kept = append(kept, e)
		}
	}
	s.put(ctx, key, snap, kept)
}

func (s *AttendanceLogService) patchTotal(ctx context.Context, key string, snap *localcache.Envelope) {
	if snap == nil {
		return
	}
	var n int
	if err := snap.Decode(&n); err != nil {
		return
	}
	if n > 0 {
		n--
	}
	s.put(ctx, key, snap, n)
}

func (s *AttendanceLogService) put(ctx context.Context, key string, snap *localcache.Envelope, value interface{}) {
	patched, err := snap.WithData(value)
	if err == nil {
		err = s.store.Put(ctx, key, patched)
	}
	if err != nil {
		s.logger.Warn("optimistic cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *AttendanceLogService) restore(ctx context.Context, key string, snap *localcache.Envelope) {
	if err := s.store.Put(ctx, key, snap); err != nil {
		s.logger.Error("cache rollback failed", zap.String("key", key), zap.Error(err))
	}
}
