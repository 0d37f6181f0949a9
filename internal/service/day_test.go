package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func fixedDays(t *testing.T, zone string, now time.Time) Days {
	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	d := NewDays(loc)
	d.now = func() time.Time { return now }
	return d
}

func TestDaysTodayUsesLocation(t *testing.T) {
	// 20:00 UTC on May 1st is already May 2nd in Jakarta
	d := fixedDays(t, "Asia/Jakarta", time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-05-02", d.Today())
}

func TestDaysNormalize(t *testing.T) {
	d := fixedDays(t, "Asia/Jakarta", time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC))

	day, err := d.Normalize("")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", day)

	day, err = d.Normalize("2024-04-30")
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30", day)

	day, err = d.Normalize("2024-04-30T18:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", day)

	_, err = d.Normalize("30/04/2024")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
