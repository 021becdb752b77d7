// Package http provides gin middleware shared by HTTP-facing services.
package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LoggerMiddleware logs each request's method, path, status and latency
// through logrus once the handler chain completes.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = fmt.Sprintf("%s?%s", path, raw)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log.WithFields(log.Fields{
			"status":     status,
			"latency":    latency,
			"client_ip":  c.ClientIP(),
			"req_method": c.Request.Method,
			"req_uri":    path,
		}).Infof("%s %s status=%d latency=%s client_ip=%s",
			c.Request.Method, path, status, latency, c.ClientIP())
	}
}
