package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/internal/app"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/pkg/response"
)

// MonitoringHandler reports in-process counters together with the current
// readiness of each dependency.
type MonitoringHandler struct {
	module   *monitoring.Module
	endpoint string
	metrics  bool
}

// NewMonitoringHandler returns nil when both metrics and health are disabled.
func NewMonitoringHandler(module *monitoring.Module, cfg app.MonitoringConfig) *MonitoringHandler {
	if module == nil || (!cfg.Health.Enabled && !cfg.Prometheus.Enabled) {
		return nil
	}
	endpoint := strings.TrimSpace(cfg.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return &MonitoringHandler{module: module, endpoint: endpoint, metrics: cfg.Prometheus.Enabled}
}

// Summary returns lookup, origin, commit and eviction counters plus the
// last outcome of every maintenance job.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	payload := gin.H{
		"summary": h.module.Summary(),
		"prometheus": gin.H{
			"enabled":  h.metrics,
			"endpoint": h.endpoint,
		},
	}
	if health := h.module.Health(); health != nil {
		payload["readiness"] = health.EvaluateReadiness(requestContext(c))
	}
	response.Success(c, http.StatusOK, payload)
}
