package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

var attendanceRowColumns = []string{"id", "student_id", "date", "created_at"}

func TestAttendanceMarkCreates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendances WHERE student_id = $1 AND date = $2::date LIMIT 1")).
		WithArgs("s1", "2024-05-01").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendances (id, student_id, date, created_at) VALUES ($1, $2, $3::date, $4)")).
		WithArgs(sqlmock.AnyArg(), "s1", "2024-05-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	att, created, err := repo.Mark(context.Background(), "s1", "2024-05-01")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2024-05-01", att.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceMarkExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendances WHERE student_id = $1")).
		WithArgs("s1", "2024-05-01").
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).AddRow("a1", "s1", "2024-05-01", time.Now()))

	att, created, err := repo.Mark(context.Background(), "s1", "2024-05-01")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a1", att.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceMarkConflictRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("FROM attendances WHERE student_id").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO attendances").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM attendances WHERE student_id").
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).AddRow("a9", "s1", "2024-05-01", time.Now()))

	att, created, err := repo.Mark(context.Background(), "s1", "2024-05-01")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a9", att.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRemove(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("DELETE FROM attendances a USING students s").
		WithArgs("u1", "s1", "2024-05-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Remove(context.Background(), "u1", "s1", "2024-05-01"))

	mock.ExpectExec("DELETE FROM attendances").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Remove(context.Background(), "u1", "s1", "2024-05-02"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	totals, err := repo.Totals(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, totals)

	mock.ExpectQuery(regexp.QuoteMeta("s.id = ANY($2::uuid[])")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "total"}).AddRow("s1", 3).AddRow("s2", 0))

	totals, err = repo.Totals(context.Background(), "u1", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"s1": 3, "s2": 0}, totals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceHistoryWithRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.user_id = $1 AND a.date >= $2::date AND a.date <= $3::date GROUP BY a.date ORDER BY a.date ASC")).
		WithArgs("u1", "2024-05-01", "2024-05-31").
		WillReturnRows(sqlmock.NewRows([]string{"date", "count"}).AddRow("2024-05-01", 4).AddRow("2024-05-02", 2))

	points, err := repo.History(context.Background(), "u1", models.HistoryFilter{From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	assert.Equal(t, []models.AttendanceHistoryPoint{{Date: "2024-05-01", Count: 4}, {Date: "2024-05-02", Count: 2}}, points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceDailyAndCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("FROM attendances a JOIN students s").
		WithArgs("u1", "2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "student_name", "date"}).AddRow("a1", "s1", "Ada", "2024-05-01"))
	entries, err := repo.Daily(context.Background(), "u1", "2024-05-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ada", entries[0].StudentName)

	mock.ExpectQuery("AS total_students").
		WithArgs("u1", "2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"total_students", "today_attendance", "total_attendance"}).AddRow(10, 4, 25))
	counts, err := repo.Counts(context.Background(), "u1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, AttendanceCounts{TotalStudents: 10, TodayAttendance: 4, TotalAttendance: 25}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
