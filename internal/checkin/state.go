// Package checkin drives the check-in flow: lookup by name, optional registration, marking,
// an optimistic metrics bump and a delayed resync with the server.
package checkin

import (
	"sync"

	"github.com/noah-isme/attendance-api/internal/models"
)

// State is a step of the check-in flow.
type State int

const (
	Idle State = iota
	Checking
	NeedsDetails
	Submitting
	Marked
	AlreadyMarked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case NeedsDetails:
		return "needs_details"
	case Submitting:
		return "submitting"
	case Marked:
		return "marked"
	case AlreadyMarked:
		return "already_marked"
	default:
		return "unknown"
	}
}

// MetricsView is the in-memory dashboard snapshot patched by check-ins.
type MetricsView struct {
	mu       sync.RWMutex
	snapshot models.MetricsSnapshot
}

// Snapshot returns a copy of the current view.
func (v *MetricsView) Snapshot() models.MetricsSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// Replace swaps in a server snapshot.
func (v *MetricsView) Replace(snapshot models.MetricsSnapshot) {
	v.mu.Lock()
	v.snapshot = snapshot
	v.mu.Unlock()
}

// Bump records one new check-in, plus one new student when newStudent is set.
func (v *MetricsView) Bump(newStudent bool) models.MetricsSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot.TodayAttendance++
	v.snapshot.TotalAttendance++
	if newStudent {
		v.snapshot.TotalStudents++
	}
	v.snapshot.Recompute()
	return v.snapshot
}
