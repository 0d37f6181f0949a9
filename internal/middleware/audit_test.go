package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/attendance-api/internal/models"
)

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1"})
		c.Next()
	})
	r.PUT("/students/:id", Audit(zap.New(core), "update", "student"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.DELETE("/attendance/remove", Audit(zap.New(core), "remove", "attendance"), func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/students/s1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/attendance/remove", nil))

	entries := logs.All()
	require.Len(t, entries, 1, "failed requests are not audited")
	fields := entries[0].ContextMap()
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "update", fields["action"])
	assert.Equal(t, "student", fields["resource"])
	assert.Equal(t, "s1", fields["resource_id"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "/students/:id", fields["path"])
}

func TestAuditNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/import", Audit(nil, "import", "roster"), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/import", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
