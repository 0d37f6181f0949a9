package models

import "time"

// DateLayout is the calendar-day format used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// Attendance is one check-in of a student on a calendar day.
type Attendance struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"studentId"`
	Date      string    `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MarkOutcome distinguishes a new check-in from a repeated one.
type MarkOutcome string

const (
	OutcomeMarked        MarkOutcome = "marked"
	OutcomeAlreadyMarked MarkOutcome = "already_marked"
)

// MarkAttendanceRequest is the payload for POST /attendance. Date defaults to today.
type MarkAttendanceRequest struct {
	StudentID string `json:"studentId" validate:"required,uuid"`
	Date      string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// MarkAttendanceResult reports what the mark call did.
type MarkAttendanceResult struct {
	Outcome    MarkOutcome `json:"outcome"`
	Attendance Attendance  `json:"attendance"`
}

// RemoveAttendanceRequest is the payload for DELETE /attendance/remove.
type RemoveAttendanceRequest struct {
	StudentID string `json:"studentId" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// DailyAttendanceEntry is a row of the per-day attendance log.
type DailyAttendanceEntry struct {
	ID          string `db:"id" json:"id"`
	StudentID   string `db:"student_id" json:"studentId"`
	StudentName string `db:"student_name" json:"studentName"`
	Date        string `db:"date" json:"date"`
}

// AttendanceHistoryPoint is the number of check-ins on one day.
type AttendanceHistoryPoint struct {
	Date  string `db:"date" json:"date"`
	Count int    `db:"count" json:"count"`
}

// HistoryFilter bounds the history series. Empty values are open ends.
type HistoryFilter struct {
	From string
	To   string
}

// AttendanceTotal is the number of check-ins recorded for a student.
type AttendanceTotal struct {
	StudentID string `db:"student_id"`
	Total     int    `db:"total"`
}
