package secure

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// New applies standard security headers. Development mode relaxes checks
// that would break plain-HTTP local runs.
func New(isDevelopment bool) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://go-echarts.github.io; style-src 'self' 'unsafe-inline'",
		IsDevelopment:         isDevelopment,
	})
	return func(c *gin.Context) {
		if err := mw.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}
