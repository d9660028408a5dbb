package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

// CronSecret guards scheduled job triggers with a shared bearer secret. An
// empty secret disables the routes entirely.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cron triggers are disabled"))
			c.Abort()
			return
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid cron secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
