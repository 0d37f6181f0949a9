package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type fakeTotals struct {
	totals map[string]int
	err    error
	asked  []string
}

func (f *fakeTotals) Totals(_ context.Context, _ string, ids []string) (map[string]int, error) {
	f.asked = ids
	return f.totals, f.err
}

type recordingRenderer struct {
	title string
	data  export.Dataset
}

func (r *recordingRenderer) Render(data export.Dataset, title string) ([]byte, error) {
	r.title = title
	r.data = data
	return []byte("ok"), nil
}

func TestExportRosterCSVRoundTripsThroughImport(t *testing.T) {
	repo := newMemStudentRepo()
	ada := repo.seed("u1", "Ada Lovelace")
	repo.seed("u1", "Alan Turing")
	totals := &fakeTotals{totals: map[string]int{ada.ID: 7}}
	svc := NewExportService(repo, totals, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }

	out, err := svc.Roster(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "roster-20240501-083000.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Len(t, totals.asked, 2)

	lines := strings.Split(strings.TrimSpace(string(out.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,age,gender,phoneNumber,totalAttendance", lines[0])
	assert.Equal(t, "Ada Lovelace,0,,,7", lines[1])
	assert.Equal(t, "Alan Turing,0,,,0", lines[2])

	rows, err := ParseRoster(out.Filename, out.Content)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExportRosterUsesRendererForFormat(t *testing.T) {
	pdf := &recordingRenderer{}
	svc := NewExportService(newMemStudentRepo(), &fakeTotals{}, nil, map[export.Format]export.Renderer{export.FormatPDF: pdf})

	out, err := svc.Roster(context.Background(), "u1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, []byte("ok"), out.Content)
	assert.Equal(t, "Student Roster", pdf.title)
	assert.Empty(t, pdf.data.Rows)
}

func TestExportRosterErrors(t *testing.T) {
	repo := newMemStudentRepo()
	repo.seed("u1", "Ada Lovelace")

	svc := NewExportService(repo, &fakeTotals{}, nil, nil)
	_, err := svc.Roster(context.Background(), "u1", "docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	svc = NewExportService(repo, &fakeTotals{err: errors.New("boom")}, nil, nil)
	_, err = svc.Roster(context.Background(), "u1", "csv")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
