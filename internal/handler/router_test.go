package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type staticTokens map[string]string

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if id, ok := s[token]; ok {
		return &models.JWTClaims{UserID: id}, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func TestRoutesGuardEverythingButAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes := Routes{
		Auth:       NewAuthHandler(&fakeAuthSrv{}),
		Dashboard:  NewDashboardHandler(&fakeDashboardSrv{snapshot: &models.MetricsSnapshot{}}),
		Students:   NewStudentHandler(&fakeStudentSrv{}, &fakeExporter{}),
		Attendance: NewAttendanceHandler(&fakeAttendanceSrv{outcome: models.OutcomeMarked}),
		Import:     NewImportHandler(&fakeImportSrv{max: 1024}),
	}
	passthrough := func(c *gin.Context) { c.Next() }
	routes.Register(r.Group("/api/v1"), middleware.JWT(staticTokens{"good": "u1"}), passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/students/export", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
