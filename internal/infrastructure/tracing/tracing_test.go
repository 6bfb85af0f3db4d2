package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/shared/id"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMiddlewareAssignsIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tracer := New("test", zap.New(core))

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/workspaces/:id", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		assert.NotEmpty(t, GetSpanID(c.Request.Context()))
		assert.Len(t, Fields(c.Request.Context()), 2)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/ws_1", nil))

	traceID := w.Header().Get(TraceHeader)
	_, ok := ParseTraceID(traceID)
	assert.True(t, ok)
	assert.Equal(t, TraceID(traceID), seen)
	assert.True(t, id.HasPrefix(w.Header().Get(RequestHeader), id.RequestPrefix))

	tracer.Close()
	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	entry := logs.All()[0]
	assert.Equal(t, "Request completed", entry.Message)
	assert.Equal(t, "GET /workspaces/:id", entry.ContextMap()["operation"])
	assert.Equal(t, int64(http.StatusNoContent), entry.ContextMap()["status"])
}

func TestMiddlewareContinuesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	inbound := string(NewTraceID())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, inbound)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, inbound, w.Header().Get(TraceHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "not-a-uuid\nforged")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid\nforged", w.Header().Get(TraceHeader))
}

func TestStatusLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	for _, code := range []int{200, 404, 503} {
		span, _ := tracer.StartSpan(t.Context(), "op")
		span.SetStatus(code)
		span.Finish()
		tracer.Submit(span)
	}
	tracer.Close()

	require.Eventually(t, func() bool { return logs.Len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.InfoLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}
