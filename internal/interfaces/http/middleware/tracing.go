package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps otelgin so every request runs inside a span named after its
// route pattern, and tags the span with the request id assigned by RequestID.
// Disabled tracing returns a pass-through handler.
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(serviceName)
	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if id, ok := c.Get("request_id"); ok {
			if requestID, ok := id.(string); ok && requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
		}
	}
}
