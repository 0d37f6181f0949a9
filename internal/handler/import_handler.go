package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// multipartOverhead leaves room for boundaries and part headers around the file.
const multipartOverhead = 64 * 1024

type importService interface {
	Import(ctx context.Context, userID, filename string, r io.Reader) (*models.ImportResult, error)
	MaxFileBytes() int64
}

// ImportHandler accepts roster uploads.
type ImportHandler struct {
	service importService
}

// NewImportHandler constructs the handler.
func NewImportHandler(svc importService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Import godoc
// @Summary Import roster
// @Description Creates or updates students from a CSV or XLSX file with columns name, age, gender, phoneNumber
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Roster file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /import [post]
func (h *ImportHandler) Import(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := h.service.MaxFileBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", limit)))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is required"))
		return
	}
	if header.Size > limit {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", limit)))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.service.Import(c.Request.Context(), userID, header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
