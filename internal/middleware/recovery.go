package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/mediacache/pkg/errors"
	"github.com/charlesng35/mediacache/pkg/logger"
	"github.com/charlesng35/mediacache/pkg/response"
)

// Recovery converts panics into a 500. A panic after a media body started
// streaming can only abort the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			logger.WithModule("http").Error("panic",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("written", c.Writer.Written()),
				zap.Any("error", r),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, appErrors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler renders unknown routes with the JSON error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, appErrors.ErrNotFound.WithMessage("route "+c.Request.URL.Path+" not found"))
}
