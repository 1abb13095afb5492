package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// BackendKey is the gin context key a forwarding handler sets to the backend name.
const BackendKey = "uwsgi_backend"

// RequestLogger logs one line per gateway request. Requests matched by a
// registered route are logged as "admin"; everything else is "forward" and
// carries the backend name when the handler set BackendKey.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := "admin"
		path := c.FullPath()
		if path == "" {
			route = "forward"
			path = c.Request.URL.Path
		}

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		if backend := c.GetString(BackendKey); backend != "" {
			event = event.Str("backend", backend)
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.Last().Error())
		}

		event.
			Str("route", route).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("gateway_request")
	}
}

// RequestMetricsMiddleware records every request. Unrouted paths are labeled "proxy".
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "proxy"
		}

		RecordHTTPRequest(node, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
