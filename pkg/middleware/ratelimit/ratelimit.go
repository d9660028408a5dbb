package ratelimit

import (
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/tutor-insights-api/pkg/errors"
	"github.com/noah-isme/tutor-insights-api/pkg/response"
)

// PerMinute limits each client IP to limit requests per minute. A
// non-positive limit disables the middleware.
func PerMinute(limit int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(limit),
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.Header("Retry-After", info.ResetTime.UTC().Format(time.RFC1123))
			response.Error(c, appErrors.ErrTooManyRequests)
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
