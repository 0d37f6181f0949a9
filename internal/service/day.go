package service

import (
	"strings"
	"time"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

// Days resolves calendar days in the configured timezone.
type Days struct {
	loc *time.Location
	now func() time.Time
}

// NewDays returns a resolver for loc. A nil loc means time.Local.
func NewDays(loc *time.Location) Days {
	if loc == nil {
		loc = time.Local
	}
	return Days{loc: loc, now: time.Now}
}

// Today returns the current calendar day.
func (d Days) Today() string {
	return d.current().In(d.location()).Format(models.DateLayout)
}

// Normalize turns an empty value into today, keeps YYYY-MM-DD and maps RFC 3339 timestamps to their local day.
func (d Days) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d.Today(), nil
	}
	if t, err := time.ParseInLocation(models.DateLayout, raw, d.location()); err == nil {
		return t.Format(models.DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(d.location()).Format(models.DateLayout), nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
}

func (d Days) location() *time.Location {
	if d.loc == nil {
		return time.Local
	}
	return d.loc
}

func (d Days) current() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}
