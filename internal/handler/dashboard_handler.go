package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type dashboardService interface {
	Metrics(ctx context.Context, userID string) (*models.MetricsSnapshot, bool, error)
}

// DashboardHandler serves the metrics snapshot.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Metrics godoc
// @Summary Attendance metrics
// @Description Totals for the roster, today's check-ins and the average attendance
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /metrics [get]
func (h *DashboardHandler) Metrics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	snapshot, cacheHit, err := h.service.Metrics(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, snapshot, middleware.ResponseMeta(c))
}
