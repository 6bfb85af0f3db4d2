package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:          m.registry,
		EnableOpenMetrics: true,
	})
}

// Summary is the JSON view served at /metrics/json.
func (m *Metrics) Summary() map[string]interface{} {
	snap := m.Snapshot()

	avg := 0.0
	if snap.RequestCount > 0 {
		avg = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}

	return map[string]interface{}{
		"uptime_seconds": int64(m.Uptime().Seconds()),
		"http": map[string]interface{}{
			"requests":       snap.TotalRequests,
			"errors":         snap.TotalErrors,
			"avg_latency_ms": avg,
		},
		"preview": map[string]interface{}{
			"compiles":          snap.TotalCompiles,
			"mounts":            snap.TotalMounts,
			"compile_latency":   m.CompileSummary(),
			"active_workspaces": snap.ActiveWorkspaces,
		},
		"saves": map[string]interface{}{
			"failures": snap.SaveFailures,
		},
		"websocket": map[string]interface{}{
			"connections": snap.ActiveConnections,
		},
	}
}
