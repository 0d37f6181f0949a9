package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/export"
)

type rosterStudentLister interface {
	List(ctx context.Context, userID string, filter models.StudentFilter) ([]models.Student, error)
}

type rosterTotalsReader interface {
	Totals(ctx context.Context, userID string, studentIDs []string) (map[string]int, error)
}

// RosterExport is a rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders the roster with attendance totals.
type ExportService struct {
	students  rosterStudentLister
	totals    rosterTotalsReader
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService builds an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(students rosterStudentLister, totals rosterTotalsReader, logger *zap.Logger, renderers map[export.Format]export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	all := map[export.Format]export.Renderer{}
	for _, f := range []export.Format{export.FormatCSV, export.FormatXLSX, export.FormatPDF} {
		if r, ok := renderers[f]; ok && r != nil {
			all[f] = r
			continue
		}
		all[f] = export.RendererFor(f)
	}
	return &ExportService{students: students, totals: totals, renderers: all, logger: logger, now: time.Now}
}

// Roster renders the user's roster in the requested format.
func (s *ExportService) Roster(ctx context.Context, userID, rawFormat string) (*RosterExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	dataset, err := s.buildDataset(ctx, userID)
	if err != nil {
		return nil, err
	}

	content, err := s.renderers[format].Render(dataset, "Student Roster")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("roster exported", zap.String("user_id", userID), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &RosterExport{
		Filename:    "roster-" + s.now().UTC().Format("20060102-150405") + format.Extension(),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, userID string) (export.Dataset, error) {
	students, err := s.students.List(ctx, userID, models.StudentFilter{})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	totals := map[string]int{}
	if len(ids) > 0 {
		totals, err = s.totals.Totals(ctx, userID, ids)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance totals")
		}
	}

	dataset := export.Dataset{Headers: []string{"name", "age", "gender", "phoneNumber", "totalAttendance"}}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"name":            st.Name,
			"age":             strconv.Itoa(st.Age),
			"gender":          st.Gender,
			"phoneNumber":     st.PhoneNumber,
			"totalAttendance": strconv.Itoa(totals[st.ID]),
		})
	}
	return dataset, nil
}
