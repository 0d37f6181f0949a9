package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, userID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error)
	Remove(ctx context.Context, userID string, req models.RemoveAttendanceRequest) error
	Daily(ctx context.Context, userID, date string) ([]models.DailyAttendanceEntry, error)
	Totals(ctx context.Context, userID string, studentIDs []string) (map[string]int, error)
	History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.AttendanceHistoryPoint, bool, error)
}

// AttendanceHandler exposes check-in endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Check a student in
// @Description Returns 201 with outcome "marked" for a new check-in and 200 with "already_marked" for a repeat on the same day
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.MarkAttendanceRequest true "Check-in"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	result, err := h.service.Mark(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Outcome == models.OutcomeAlreadyMarked {
		status = http.StatusOK
	}
	response.JSON(c, status, result)
}

// Remove godoc
// @Summary Remove a check-in
// @Tags Attendance
// @Accept json
// @Security BearerAuth
// @Param payload body models.RemoveAttendanceRequest true "Check-in to remove"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /attendance/remove [delete]
func (h *AttendanceHandler) Remove(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.RemoveAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	if err := h.service.Remove(c.Request.Context(), userID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Daily godoc
// @Summary Check-ins of a day
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /attendance/daily [get]
func (h *AttendanceHandler) Daily(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	entries, err := h.service.Daily(c.Request.Context(), userID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.DailyAttendanceEntry{}
	}
	response.OK(c, entries)
}

// Totals godoc
// @Summary Check-in totals per student
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param studentIds query string true "Comma separated student IDs"
// @Success 200 {object} response.Envelope
// @Router /attendance/total [get]
func (h *AttendanceHandler) Totals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var ids []string
	for _, raw := range c.QueryArray("studentIds") {
		ids = append(ids, strings.Split(raw, ",")...)
	}
	totals, err := h.service.Totals(c.Request.Context(), userID, ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}

// History godoc
// @Summary Check-ins per day
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	filter := models.HistoryFilter{From: c.Query("from"), To: c.Query("to")}
	points, cacheHit, err := h.service.History(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if points == nil {
		points = []models.AttendanceHistoryPoint{}
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, points, middleware.ResponseMeta(c))
}
