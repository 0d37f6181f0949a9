package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

const maxTotalsBatch = 500

type attendanceRepository interface {
	Mark(ctx context.Context, studentID, date string) (*models.Attendance, bool, error)
	Remove(ctx context.Context, userID, studentID, date string) error
	Daily(ctx context.Context, userID, date string) ([]models.DailyAttendanceEntry, error)
	Totals(ctx context.Context, userID string, studentIDs []string) (map[string]int, error)
	History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.AttendanceHistoryPoint, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, userID, id string) (*models.Student, error)
}

// AttendanceService marks, removes and reports check-ins.
type AttendanceService struct {
	repo       attendanceRepository
	students   studentFinder
	cache      *CacheService
	metrics    *MetricsService
	days       Days
	validator  *validator.Validate
	logger     *zap.Logger
	historyTTL time.Duration
}

// NewAttendanceService wires the attendance use-cases.
func NewAttendanceService(repo attendanceRepository, students studentFinder, cache *CacheService, metrics *MetricsService, days Days, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:       repo,
		students:   students,
		cache:      cache,
		metrics:    metrics,
		days:       days,
		validator:  validate,
		logger:     logger,
		historyTTL: 5 * time.Minute,
	}
}

// Mark checks a student in for a day. A repeated check-in is reported as OutcomeAlreadyMarked, not as an error.
func (s *AttendanceService) Mark(ctx context.Context, userID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := s.days.Normalize(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, userID, req.StudentID); err != nil {
		return nil, err
	}

	att, created, err := s.repo.Mark(ctx, req.StudentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	outcome := models.OutcomeAlreadyMarked
	if created {
		outcome = models.OutcomeMarked
		s.invalidate(ctx, userID)
	}
	s.metrics.ObserveCheckIn(string(outcome))
	s.logger.Debug("attendance marked", zap.String("student_id", req.StudentID), zap.String("date", date), zap.String("outcome", string(outcome)))
	return &models.MarkAttendanceResult{Outcome: outcome, Attendance: *att}, nil
}

// Remove deletes a check-in.
func (s *AttendanceService) Remove(ctx context.Context, userID string, req models.RemoveAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if err := s.repo.Remove(ctx, userID, req.StudentID, req.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove attendance")
	}
	s.invalidate(ctx, userID)
	return nil
}

// Daily lists check-ins of a day. An empty date means today.
func (s *AttendanceService) Daily(ctx context.Context, userID, rawDate string) ([]models.DailyAttendanceEntry, error) {
	date, err := s.days.Normalize(rawDate)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.Daily(ctx, userID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily attendance")
	}
	return entries, nil
}

// Totals returns the check-in count for every requested id. Unknown ids report zero.
func (s *AttendanceService) Totals(ctx context.Context, userID string, studentIDs []string) (map[string]int, error) {
	ids := make([]string, 0, len(studentIDs))
	seen := make(map[string]struct{}, len(studentIDs))
	for _, raw := range studentIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "studentIds must be UUIDs")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentIds is required")
	}
	if len(ids) > maxTotalsBatch {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many studentIds")
	}

	totals, err := s.repo.Totals(ctx, userID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance totals")
	}
	for _, id := range ids {
		if _, ok := totals[id]; !ok {
			totals[id] = 0
		}
	}
	return totals, nil
}

// History returns per-day counts, optionally bounded, and whether the series came from cache.
func (s *AttendanceService) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.AttendanceHistoryPoint, bool, error) {
	var err error
	if filter.From != "" {
		if filter.From, err = s.days.Normalize(filter.From); err != nil {
			return nil, false, err
		}
	}
	if filter.To != "" {
		if filter.To, err = s.days.Normalize(filter.To); err != nil {
			return nil, false, err
		}
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	key := UserCacheKey(userID, "history", filter.From, filter.To)
	var cached []models.AttendanceHistoryPoint
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	points, err := s.repo.History(ctx, userID, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	if err := s.cache.Set(ctx, key, points, s.historyTTL); err != nil {
		s.logger.Warn("history cache write failed", zap.String("key", key), zap.Error(err))
	}
	return points, false, nil
}

func (s *AttendanceService) ensureStudent(ctx context.Context, userID, studentID string) error {
	if _, err := s.students.FindByID(ctx, userID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return nil
}

func (s *AttendanceService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("attendance cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
