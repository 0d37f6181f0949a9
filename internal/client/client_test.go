package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestClientSendsTokenAndDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/metrics", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeData(w, http.StatusOK, models.MetricsSnapshot{TotalStudents: 10, AverageAttendance: 250})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1/", WithToken("tok"))
	snapshot, err := c.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, snapshot.TotalStudents)
	assert.Equal(t, 250, snapshot.AverageAttendance)
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"CONFLICT","message":"a student with this name already exists","status":409}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateStudent(context.Background(), models.CreateStudentRequest{Name: "Ada"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "a student with this name already exists", apiErr.Message)
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Metrics(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClientTransportErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL).Metrics(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClientQueryParameters(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.RequestURI())
		switch r.URL.Path {
		case "/attendance/total":
			writeData(w, http.StatusOK, map[string]int{"a": 2, "b": 0})
		case "/attendance/daily":
			writeData(w, http.StatusOK, []models.DailyAttendanceEntry{{StudentID: "a"}})
		case "/attendance/history":
			writeData(w, http.StatusOK, []models.AttendanceHistoryPoint{})
		default:
			writeData(w, http.StatusOK, []models.Student{{ID: "a", Name: "Ada Lovelace"}})
		}
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	totals, err := c.TotalAttendances(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 0}, totals)

	_, err = c.DailyAttendance(ctx, "2024-05-01")
	require.NoError(t, err)
	_, err = c.AttendanceHistory(ctx, "", "2024-05-01")
	require.NoError(t, err)
	students, err := c.ListStudents(ctx, "Ada Lovelace")
	require.NoError(t, err)
	assert.Len(t, students, 1)

	assert.Equal(t, []string{
		"/attendance/total?studentIds=a%2Cb",
		"/attendance/daily?date=2024-05-01",
		"/attendance/history?to=2024-05-01",
		"/students?name=Ada+Lovelace",
	}, seen)
}

func TestClientMarkAndRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "s-1", body["studentId"])
			writeData(w, http.StatusOK, models.MarkAttendanceResult{Outcome: models.OutcomeAlreadyMarked})
		case http.MethodDelete:
			assert.Equal(t, "2024-05-01", body["date"])
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	res, err := c.MarkAttendance(context.Background(), models.MarkAttendanceRequest{StudentID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyMarked, res.Outcome)

	require.NoError(t, c.RemoveAttendance(context.Background(), models.RemoveAttendanceRequest{StudentID: "s-1", Date: "2024-05-01"}))
}

func TestClientImportUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "roster.csv", header.Filename)
		assert.Equal(t, "name\nAda\n", string(content))
		writeData(w, http.StatusOK, models.ImportResult{TotalRecords: 1, ImportedOrUpdatedRecords: 1})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("name\nAda\n"), 0o600))

	res, err := New(srv.URL).Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedOrUpdatedRecords)

	_, err = New(srv.URL).Import(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestClientExportRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pdf", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="roster-20240501-083000.pdf"`)
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	out, err := New(srv.URL).ExportRoster(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "roster-20240501-083000.pdf", out.Filename)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.Equal(t, "%PDF", string(out.Content))
}
