package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
)

// MetricsSnapshot is the JSON view of the service metrics.
type MetricsSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Backend   map[string]interface{} `json:"backend"`
	Live      LiveCounts             `json:"live"`
	Summary   MetricsSummary         `json:"summary"`
}

// LiveCounts are read from the running services rather than the collector.
type LiveCounts struct {
	Workspaces int    `json:"workspaces"`
	Mounts     int    `json:"mounts"`
	Templates  int    `json:"templates"`
	CDNBreaker string `json:"cdn_breaker,omitempty"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64                     `json:"total_requests"`
	AverageLatencyMs  float64                   `json:"average_latency_ms"`
	ErrorRate         float64                   `json:"error_rate"`
	ActiveConnections int64                     `json:"active_connections"`
	UptimeSeconds     float64                   `json:"uptime_seconds"`
	Compiles          int64                     `json:"compiles"`
	CompileLatency    monitoring.CompileSummary `json:"compile_latency"`
}

// AggregatedMetrics serves /metrics/json.
func (h *Handlers) AggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

func (h *Handlers) snapshot() MetricsSnapshot {
	live := LiveCounts{
		Workspaces: h.workspaces.Len(),
		Mounts:     h.host.Len(),
		Templates:  h.templates.Len(),
	}
	if h.prober != nil {
		live.CDNBreaker = h.prober.BreakerState().String()
	}
	snap := MetricsSnapshot{
		Timestamp: time.Now(),
		Live:      live,
		Backend:   map[string]interface{}{},
	}
	if h.metrics == nil {
		return snap
	}
	snap.Backend = h.metrics.Summary()
	snap.Summary = summarize(h.metrics)
	return snap
}

func summarize(m *monitoring.Metrics) MetricsSummary {
	s := m.Snapshot()
	out := MetricsSummary{
		TotalRequests:     s.TotalRequests,
		ActiveConnections: s.ActiveConnections,
		UptimeSeconds:     m.Uptime().Seconds(),
		Compiles:          s.TotalCompiles,
		CompileLatency:    m.CompileSummary(),
	}
	if s.RequestCount > 0 {
		out.AverageLatencyMs = s.TotalDuration / float64(s.RequestCount) * 1000
	}
	if s.TotalRequests > 0 {
		out.ErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	return out
}
