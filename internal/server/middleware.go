package server

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger creates a gin middleware for logging requests using logrus.
// Server errors are logged at Error, client errors at Warn, everything
// else at Debug.
func RequestLogger(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		atomic.AddInt64(&m.Requests, 1)

		entry := logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   time.Since(start),
			"client_ip": c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			atomic.AddInt64(&m.ErrorCount, 1)
			entry.Error("server error")
		case status >= 400:
			atomic.AddInt64(&m.ErrorCount, 1)
			entry.Warn("client error")
		default:
			entry.Debug("request processed")
		}
	}
}
