package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		// Route templates keep label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, time.Since(start), respSize)
	}
}

// Timer measures one compilation
type Timer struct {
	start   time.Time
	metrics *Metrics
	trigger string
}

// NewTimer starts timing a compilation caused by trigger.
func NewTimer(metrics *Metrics, trigger string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		trigger: trigger,
	}
}

// Stop records the compilation and returns its duration.
func (t *Timer) Stop(diagnostics int) time.Duration {
	d := time.Since(t.start)
	t.metrics.RecordCompile(t.trigger, d, diagnostics)
	return d
}
