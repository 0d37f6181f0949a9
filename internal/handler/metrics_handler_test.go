package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/attendance-api/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReadyReportsDependencies(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	h := NewMetricsHandler(nil, map[string]Pinger{"database": healthy})
	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"database": healthy, "redis": down})
	c, rec = newTestContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestPrometheusEndpoint(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	c, rec := newTestContext(http.MethodGet, "/metrics/prometheus", nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	metrics := service.NewMetricsService()
	metrics.ObserveCheckIn("marked")
	h = NewMetricsHandler(metrics, nil)
	c, rec = newTestContext(http.MethodGet, "/metrics/prometheus", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
