package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/charlesng35/mediacache/pkg/logger"
)

// Logger writes one structured access line per request. Successful media
// responses log at debug so hit traffic does not drown out origin failures.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if rng := c.GetHeader("Range"); rng != "" {
			fields = append(fields, zap.String("range", rng))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.WithModule("http")
		if ce := log.Check(accessLevel(status, c.FullPath()), "request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int, route string) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case route == "/images/*path":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
