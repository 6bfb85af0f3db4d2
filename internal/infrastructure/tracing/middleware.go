package tracing

import (
	"context"

	"github.com/gin-gonic/gin"
)

// HTTPMiddleware opens a span per request, echoes the trace and request
// ids in response headers and logs the request when it completes.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID, ok := ParseTraceID(c.GetHeader(TraceHeader)); ok {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("path", c.Request.URL.Path)
		span.SetTag("client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)
		c.Set("request_id", string(span.SpanID))
		c.Header(TraceHeader, string(span.TraceID))
		c.Header(RequestHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
