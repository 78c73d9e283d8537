package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-finance-api/internal/service"
)

const readinessTimeout = 2 * time.Second

// ReadinessProbe checks one backing dependency.
type ReadinessProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// MetricsHandler serves the operational endpoints: liveness, readiness and Prometheus scraping.
type MetricsHandler struct {
	metrics *service.MetricsService
	probes  []ReadinessProbe
}

// NewMetricsHandler constructs the handler. Probes are evaluated by Ready in order.
func NewMetricsHandler(metrics *service.MetricsService, probes ...ReadinessProbe) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, probes: probes}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health reports that the process is up.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every probe and answers 503 when any of them fails.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.probes))
	for _, probe := range h.probes {
		if err := probe.Check(ctx); err != nil {
			checks[probe.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[probe.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
