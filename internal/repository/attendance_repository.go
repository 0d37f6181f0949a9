package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-api/internal/models"
)

const attendanceColumns = `id, student_id, to_char(date, 'YYYY-MM-DD') AS date, created_at`

// AttendanceCounts are the raw numbers behind the metrics snapshot.
type AttendanceCounts struct {
	TotalStudents   int `db:"total_students"`
	TodayAttendance int `db:"today_attendance"`
	TotalAttendance int `db:"total_attendance"`
}

// AttendanceRepository persists check-ins. A student has at most one row per day.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByStudentDate returns the check-in of a student on a day.
func (r *AttendanceRepository) FindByStudentDate(ctx context.Context, studentID, date string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE student_id = $1 AND date = $2::date LIMIT 1`
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &att, nil
}

// Mark records a check-in unless one exists for the same student and day.
// It returns the stored row and whether this call created it.
func (r *AttendanceRepository) Mark(ctx context.Context, studentID, date string) (*models.Attendance, bool, error) {
	existing, err := r.FindByStudentDate(ctx, studentID, date)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	att := models.Attendance{ID: uuid.NewString(), StudentID: studentID, Date: date, CreatedAt: time.Now().UTC()}
	const query = `INSERT INTO attendances (id, student_id, date, created_at) VALUES ($1, $2, $3::date, $4)
        ON CONFLICT (student_id, date) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, att.ID, att.StudentID, att.Date, att.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert attendance rows: %w", err)
	}
	if affected == 0 {
		// lost a race with a concurrent check-in
		existing, err := r.FindByStudentDate(ctx, studentID, date)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &att, true, nil
}

// Remove deletes a user's student check-in for a day. sql.ErrNoRows is returned when none existed.
func (r *AttendanceRepository) Remove(ctx context.Context, userID, studentID, date string) error {
	const query = `DELETE FROM attendances a USING students s
        WHERE a.student_id = s.id AND s.user_id = $1 AND a.student_id = $2 AND a.date = $3::date`
	res, err := r.db.ExecContext(ctx, query, userID, studentID, date)
	if err != nil {
		return fmt.Errorf("remove attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove attendance rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Daily lists the check-ins of a day with student names.
func (r *AttendanceRepository) Daily(ctx context.Context, userID, date string) ([]models.DailyAttendanceEntry, error) {
	const query = `SELECT a.id, a.student_id, s.name AS student_name, to_char(a.date, 'YYYY-MM-DD') AS date
        FROM attendances a JOIN students s ON s.id = a.student_id
        WHERE s.user_id = $1 AND a.date = $2::date
        ORDER BY a.created_at ASC`
	entries := make([]models.DailyAttendanceEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, userID, date); err != nil {
		return nil, fmt.Errorf("daily attendance: %w", err)
	}
	return entries, nil
}

// Totals counts check-ins per student for the given ids. Ids not on the user's roster are absent.
func (r *AttendanceRepository) Totals(ctx context.Context, userID string, studentIDs []string) (map[string]int, error) {
	totals := make(map[string]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return totals, nil
	}
	const query = `SELECT s.id AS student_id, COUNT(a.id) AS total
        FROM students s LEFT JOIN attendances a ON a.student_id = s.id
        WHERE s.user_id = $1 AND s.id = ANY($2::uuid[])
        GROUP BY s.id`
	var rows []models.AttendanceTotal
	if err := r.db.SelectContext(ctx, &rows, query, userID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("attendance totals: %w", err)
	}
	for _, row := range rows {
		totals[row.StudentID] = row.Total
	}
	return totals, nil
}

// History returns per-day check-in counts in ascending date order.
func (r *AttendanceRepository) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.AttendanceHistoryPoint, error) {
	conditions := []string{"s.user_id = $1"}
	args := []interface{}{userID}
	if filter.From != "" {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d::date", len(args)+1))
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d::date", len(args)+1))
		args = append(args, filter.To)
	}
	query := fmt.Sprintf(`SELECT to_char(a.date, 'YYYY-MM-DD') AS date, COUNT(*) AS count
        FROM attendances a JOIN students s ON s.id = a.student_id
        WHERE %s GROUP BY a.date ORDER BY a.date ASC`, strings.Join(conditions, " AND "))

	points := make([]models.AttendanceHistoryPoint, 0)
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return points, nil
}

// Counts gathers roster size, the day's check-ins and all-time check-ins in one round trip.
func (r *AttendanceRepository) Counts(ctx context.Context, userID, date string) (AttendanceCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE user_id = $1) AS total_students,
        (SELECT COUNT(*) FROM attendances a JOIN students s ON s.id = a.student_id WHERE s.user_id = $1 AND a.date = $2::date) AS today_attendance,
        (SELECT COUNT(*) FROM attendances a JOIN students s ON s.id = a.student_id WHERE s.user_id = $1) AS total_attendance`
	var counts AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, userID, date); err != nil {
		return AttendanceCounts{}, fmt.Errorf("attendance counts: %w", err)
	}
	return counts, nil
}
