package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/pkg/response"
)

// Health returns a simple status payload useful when health checks are disabled.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// HealthHandler exposes liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
	now     func() time.Time
}

// NewHealthHandler returns nil when manager is nil.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	if manager == nil {
		return nil
	}
	return &HealthHandler{manager: manager, now: time.Now}
}

// Overall reports the merged liveness and readiness status without details.
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx := requestContext(c)
	report := monitoring.MergeReports(h.manager.EvaluateLiveness(ctx), h.manager.EvaluateReadiness(ctx))
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": h.now().UTC(),
	})
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	h.write(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready reports dependency readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	h.write(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func (h *HealthHandler) write(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": h.now().UTC(),
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// DisabledHealth answers health routes when health checks are turned off.
func DisabledHealth(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
