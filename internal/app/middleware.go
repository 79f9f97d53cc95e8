package app

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
)

// metricsAuthMiddleware guards /metrics with Basic Auth for the configured
// scrape account. An empty password leaves the endpoint open.
func metricsAuthMiddleware(username, password string) gin.HandlerFunc {
	if password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{username: password}, "metrics")
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404 and below 400=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID != "" {
			c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())
		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != 404:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
