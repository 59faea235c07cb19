package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"sajupia/pkg/utils"
)

// CronSecretMiddleware admits scheduler calls carrying the shared secret as a
// bearer token. An empty secret rejects everything.
func CronSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			utils.RespondAppError(c, utils.ErrUnauthorized)
			return
		}
		c.Next()
	}
}
