package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// mutationContext ignores client cancellation. A hang-up halfway through a
// delete would otherwise leave the blob removed while its index row survives.
func mutationContext(c *gin.Context) context.Context {
	return context.WithoutCancel(requestContext(c))
}
