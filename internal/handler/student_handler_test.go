package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type fakeStudentSrv struct {
	students  []models.Student
	name      string
	createErr error
	updatedID string
}

func (f *fakeStudentSrv) List(_ context.Context, _ string, name string) ([]models.Student, error) {
	f.name = name
	return f.students, nil
}

func (f *fakeStudentSrv) Create(_ context.Context, userID string, req models.CreateStudentRequest) (*models.Student, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Student{ID: "s-1", UserID: userID, Name: req.Name, Age: req.Age}, nil
}

func (f *fakeStudentSrv) Update(_ context.Context, _ string, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	f.updatedID = id
	st := &models.Student{ID: id}
	if req.Age != nil {
		st.Age = *req.Age
	}
	return st, nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) Roster(_ context.Context, _ string, format string) (*service.RosterExport, error) {
	f.format = format
	if format == "docx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.RosterExport{Filename: "roster.csv", ContentType: "text/csv", Content: []byte("name\n")}, nil
}

func TestStudentListEmptyIsArray(t *testing.T) {
	srv := &fakeStudentSrv{}
	h := NewStudentHandler(srv, &fakeExporter{})
	c, rec := newTestContext(http.MethodGet, "/students?name=ada%20lovelace", nil)
	h.List(asUser(c, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada lovelace", srv.name)
	assert.JSONEq(t, `[]`, string(decode(t, rec, nil).Data))
}

func TestStudentCreateHidesInternalFields(t *testing.T) {
	h := NewStudentHandler(&fakeStudentSrv{}, &fakeExporter{})
	c, rec := newTestContext(http.MethodPost, "/students", map[string]interface{}{"name": "Ada", "age": 12})
	h.Create(asUser(c, "u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Ada", body["name"])
	assert.NotContains(t, body, "userId")
	assert.NotContains(t, body, "normalizedName")
}

func TestStudentCreateConflict(t *testing.T) {
	h := NewStudentHandler(&fakeStudentSrv{createErr: appErrors.Clone(appErrors.ErrConflict, "exists")}, &fakeExporter{})
	c, rec := newTestContext(http.MethodPost, "/students", map[string]interface{}{"name": "Ada"})
	h.Create(asUser(c, "u1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrConflict.Code, decode(t, rec, nil).Error.Code)
}

func TestStudentUpdateUsesPathID(t *testing.T) {
	srv := &fakeStudentSrv{}
	h := NewStudentHandler(srv, &fakeExporter{})
	c, rec := newTestContext(http.MethodPut, "/students/s-9", map[string]interface{}{"age": 14})
	c.Params = append(c.Params, ginParam("id", "s-9"))
	h.Update(asUser(c, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-9", srv.updatedID)
}

func TestStudentExportWritesAttachment(t *testing.T) {
	exporter := &fakeExporter{}
	h := NewStudentHandler(&fakeStudentSrv{}, exporter)
	c, rec := newTestContext(http.MethodGet, "/students/export?format=csv", nil)
	h.Export(asUser(c, "u1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roster.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "name\n", rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/students/export?format=docx", nil)
	h.Export(asUser(c, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
