package models

import "math"

// MetricsSnapshot is the dashboard summary computed from roster and attendance counts.
type MetricsSnapshot struct {
	TotalStudents     int    `json:"totalStudents"`
	TodayAttendance   int    `json:"todayAttendance"`
	AverageAttendance int    `json:"averageAttendance"`
	TotalAttendance   int    `json:"totalAttendance"`
	Date              string `json:"date,omitempty"`
}

// AverageAttendance is round(totalAttendance / totalStudents * 100), or 0 for an empty roster.
// The result is check-ins per student scaled by 100, so it exceeds 100 once students average more than one check-in.
func AverageAttendance(totalAttendance, totalStudents int) int {
	if totalStudents <= 0 {
		return 0
	}
	return int(math.Round(float64(totalAttendance) / float64(totalStudents) * 100))
}

// Recompute refreshes AverageAttendance from the totals.
func (m *MetricsSnapshot) Recompute() {
	m.AverageAttendance = AverageAttendance(m.TotalAttendance, m.TotalStudents)
}
