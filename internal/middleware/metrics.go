package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/internal/monitoring"
)

// Metrics records request latency metrics for each HTTP request. Routes are
// labelled by their pattern so media paths do not explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		monitoring.ObserveAPILatency(c.Request.Method, path, status, time.Since(start))
	}
}
