package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/middleware"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth       *AuthHandler
	Dashboard  *DashboardHandler
	Students   *StudentHandler
	Attendance *AttendanceHandler
	Import     *ImportHandler

	// AuditLog receives one entry per successful mutation. Nil disables auditing.
	AuditLog *zap.Logger
}

// Register mounts the API. requireAuth guards everything except registration and login;
// loginLimit throttles the credential endpoints.
func (r Routes) Register(api *gin.RouterGroup, requireAuth, loginLimit gin.HandlerFunc) {
	auth := api.Group("/auth", loginLimit)
	auth.POST("/register", r.Auth.Register)
	auth.POST("/login", r.Auth.Login)

	secured := api.Group("", requireAuth)
	secured.GET("/metrics", r.Dashboard.Metrics)

	students := secured.Group("/students")
	students.GET("", r.Students.List)
	students.POST("", r.audit("create", "student"), r.Students.Create)
	students.GET("/export", r.Students.Export)
	students.PUT("/:id", r.audit("update", "student"), r.Students.Update)

	attendance := secured.Group("/attendance")
	attendance.POST("", r.audit("mark", "attendance"), r.Attendance.Mark)
	attendance.DELETE("/remove", r.audit("remove", "attendance"), r.Attendance.Remove)
	attendance.GET("/daily", r.Attendance.Daily)
	attendance.GET("/total", r.Attendance.Totals)
	attendance.GET("/history", r.Attendance.History)

	secured.POST("/import", r.audit("import", "roster"), r.Import.Import)
}

func (r Routes) audit(action, resource string) gin.HandlerFunc {
	return middleware.Audit(r.AuditLog, action, resource)
}
