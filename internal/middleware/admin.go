package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mediacache/pkg/errors"
	"github.com/charlesng35/mediacache/pkg/response"
)

// AdminToken guards operator endpoints with a static bearer token. An empty
// token rejects every request so the admin API is closed by default.
func AdminToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		provided := bearerToken(c.GetHeader("Authorization"))
		if len(expected) == 0 || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
