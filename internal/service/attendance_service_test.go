package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

// memAttendanceRepo keeps check-ins in memory keyed by student and day.
type memAttendanceRepo struct {
	rows        map[string]models.Attendance
	totals      map[string]int
	history     []models.AttendanceHistoryPoint
	historyHits int
	removeErr   error
}

func newMemAttendanceRepo() *memAttendanceRepo {
	return &memAttendanceRepo{rows: map[string]models.Attendance{}, totals: map[string]int{}}
}

func (m *memAttendanceRepo) Mark(_ context.Context, studentID, date string) (*models.Attendance, bool, error) {
	key := studentID + "|" + date
	if existing, ok := m.rows[key]; ok {
		return &existing, false, nil
	}
	att := models.Attendance{ID: uuid.NewString(), StudentID: studentID, Date: date, CreatedAt: time.Now()}
	m.rows[key] = att
	return &att, true, nil
}

func (m *memAttendanceRepo) Remove(_ context.Context, _, studentID, date string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	key := studentID + "|" + date
	if _, ok := m.rows[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, key)
	return nil
}

func (m *memAttendanceRepo) Daily(_ context.Context, _, date string) ([]models.DailyAttendanceEntry, error) {
	var out []models.DailyAttendanceEntry
	for _, row := range m.rows {
		if row.Date == date {
			out = append(out, models.DailyAttendanceEntry{ID: row.ID, StudentID: row.StudentID, Date: row.Date})
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) Totals(_ context.Context, _ string, ids []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range ids {
		if v, ok := m.totals[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memAttendanceRepo) History(context.Context, string, models.HistoryFilter) ([]models.AttendanceHistoryPoint, error) {
	m.historyHits++
	return m.history, nil
}

type fakeStudentFinder struct {
	students map[string]*models.Student
}

func (f fakeStudentFinder) FindByID(_ context.Context, _ string, id string) (*models.Student, error) {
	if st, ok := f.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceServiceForTest(t *testing.T, repo *memAttendanceRepo, studentIDs ...string) *AttendanceService {
	t.Helper()
	finder := fakeStudentFinder{students: map[string]*models.Student{}}
	for _, id := range studentIDs {
		finder.students[id] = &models.Student{ID: id}
	}
	days := fixedDays(t, "UTC", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewAttendanceService(repo, finder, nil, NewMetricsService(), days, nil, nil)
}

func TestMarkTwiceSameDayIsAlreadyMarked(t *testing.T) {
	repo := newMemAttendanceRepo()
	studentID := uuid.NewString()
	svc := newAttendanceServiceForTest(t, repo, studentID)
	ctx := context.Background()

	first, err := svc.Mark(ctx, "u1", models.MarkAttendanceRequest{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMarked, first.Outcome)
	assert.Equal(t, "2024-05-01", first.Attendance.Date)

	second, err := svc.Mark(ctx, "u1", models.MarkAttendanceRequest{StudentID: studentID, Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyMarked, second.Outcome)
	assert.Equal(t, first.Attendance.ID, second.Attendance.ID)
	assert.Len(t, repo.rows, 1)

	other, err := svc.Mark(ctx, "u1", models.MarkAttendanceRequest{StudentID: studentID, Date: "2024-05-02"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMarked, other.Outcome)
	assert.Len(t, repo.rows, 2)
}

func TestMarkUnknownStudent(t *testing.T) {
	svc := newAttendanceServiceForTest(t, newMemAttendanceRepo())

	_, err := svc.Mark(context.Background(), "u1", models.MarkAttendanceRequest{StudentID: uuid.NewString()})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Mark(context.Background(), "u1", models.MarkAttendanceRequest{StudentID: "not-a-uuid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRemoveAttendance(t *testing.T) {
	repo := newMemAttendanceRepo()
	studentID := uuid.NewString()
	svc := newAttendanceServiceForTest(t, repo, studentID)
	ctx := context.Background()

	_, err := svc.Mark(ctx, "u1", models.MarkAttendanceRequest{StudentID: studentID})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "u1", models.RemoveAttendanceRequest{StudentID: studentID, Date: "2024-05-01"}))
	err = svc.Remove(ctx, "u1", models.RemoveAttendanceRequest{StudentID: studentID, Date: "2024-05-01"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = svc.Remove(ctx, "u1", models.RemoveAttendanceRequest{StudentID: studentID})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTotalsFillsZerosAndDedupes(t *testing.T) {
	repo := newMemAttendanceRepo()
	a, b := uuid.NewString(), uuid.NewString()
	repo.totals[a] = 3
	svc := newAttendanceServiceForTest(t, repo)

	totals, err := svc.Totals(context.Background(), "u1", []string{a, " " + a, b, ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{a: 3, b: 0}, totals)

	_, err = svc.Totals(context.Background(), "u1", []string{"bad"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Totals(context.Background(), "u1", nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestHistoryCachedPerRange(t *testing.T) {
	repo := newMemAttendanceRepo()
	repo.history = []models.AttendanceHistoryPoint{{Date: "2024-05-01", Count: 2}}
	svc := newAttendanceServiceForTest(t, repo)
	svc.cache = newRedisCache(t)
	ctx := context.Background()

	points, hit, err := svc.History(ctx, "u1", models.HistoryFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, repo.history, points)

	_, hit, err = svc.History(ctx, "u1", models.HistoryFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.historyHits)

	_, _, err = svc.History(ctx, "u1", models.HistoryFilter{From: "2024-05-10", To: "2024-05-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
