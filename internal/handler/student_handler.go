package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, userID, name string) ([]models.Student, error)
	Create(ctx context.Context, userID string, req models.CreateStudentRequest) (*models.Student, error)
	Update(ctx context.Context, userID, id string, req models.UpdateStudentRequest) (*models.Student, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, userID, format string) (*service.RosterExport, error)
}

// StudentHandler manages the roster endpoints.
type StudentHandler struct {
	service  studentService
	exporter rosterExporter
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(svc studentService, exporter rosterExporter) *StudentHandler {
	return &StudentHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List students
// @Description Lists the roster. With name, returns the student whose normalised name matches.
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param name query string false "Student name"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	students, err := h.service.List(c.Request.Context(), userID, c.Query("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	response.OK(c, students)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body models.UpdateStudentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Export godoc
// @Summary Export roster
// @Description Downloads the roster with attendance totals
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	file, err := h.exporter.Roster(c.Request.Context(), userID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
