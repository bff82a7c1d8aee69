package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/medivoice/internal/utils"
)

// VapiSecret rejects webhook calls whose X-Vapi-Secret header does not match.
// An empty secret disables the check.
func VapiSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Vapi-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    utils.CodeUnauthorized,
				"message": "invalid webhook secret",
			})
			return
		}
		c.Next()
	}
}
