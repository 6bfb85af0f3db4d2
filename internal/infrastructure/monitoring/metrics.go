package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gonum.org/v1/gonum/stat"
)

// compileWindow is how many recent compile durations the summary keeps.
const compileWindow = 512

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Preview pipeline metrics
	CompilesTotal    *prometheus.CounterVec
	CompileDuration  prometheus.Histogram
	CompilesSched    prometheus.Counter
	CompilesDropped  prometheus.Counter
	MountsTotal      prometheus.Counter
	LatestGeneration prometheus.Gauge
	ReportsTotal     *prometheus.CounterVec

	// Workspace metrics
	WorkspacesActive prometheus.Gauge
	SavesTotal       *prometheus.CounterVec

	// CDN probe metrics
	ProbesTotal *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	compiles []float64
	next     int

	maxGeneration uint64

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	TotalCompiles     int64
	TotalMounts       int64
	SaveFailures      int64
	ActiveWorkspaces  int64
	ActiveConnections int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
}

// CompileSummary describes recent compile latencies in milliseconds.
type CompileSummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean_ms"`
	StdDev  float64 `json:"stddev_ms"`
	P95     float64 `json:"p95_ms"`
	Max     float64 `json:"max_ms"`
}

// NewMetrics creates a collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		CompilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_compiles_total",
				Help: "Total number of document compilations",
			},
			[]string{"trigger", "result"},
		),
		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_compile_duration_seconds",
				Help:    "Document compilation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
			},
		),
		CompilesSched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_compiles_scheduled_total",
				Help: "Debounced compilations armed by edits",
			},
		),
		CompilesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_compiles_superseded_total",
				Help: "Debounced compilations cancelled by a later edit",
			},
		),
		MountsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_mounts_total",
				Help: "Total number of sandbox mounts",
			},
		),
		LatestGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_latest_generation",
				Help: "Highest run generation mounted by any workspace",
			},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_error_reports_total",
				Help: "Overlay reports by channel",
			},
			[]string{"channel"},
		),

		WorkspacesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_workspaces_active",
				Help: "Number of open workspaces",
			},
		),
		SavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_saves_total",
				Help: "Project saves by result",
			},
			[]string{"result"},
		),

		ProbesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_cdn_probes_total",
				Help: "CDN dependency probes by result",
			},
			[]string{"result"},
		),

		WSConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "preview_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.ResponseSize,
		m.CompilesTotal, m.CompileDuration, m.CompilesSched, m.CompilesDropped,
		m.MountsTotal, m.LatestGeneration, m.ReportsTotal,
		m.WorkspacesActive, m.SavesTotal, m.ProbesTotal,
		m.WSConnections, m.WSMessages, uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCompile records one compilation. trigger is "debounce", "run",
// "open" or "load".
func (m *Metrics) RecordCompile(trigger string, duration time.Duration, diagnostics int) {
	if m == nil {
		return
	}
	result := "ok"
	if diagnostics > 0 {
		result = "diagnostics"
	}
	m.CompilesTotal.WithLabelValues(trigger, result).Inc()
	m.CompileDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalCompiles++
	ms := float64(duration) / float64(time.Millisecond)
	if len(m.compiles) < compileWindow {
		m.compiles = append(m.compiles, ms)
	} else {
		m.compiles[m.next] = ms
		m.next = (m.next + 1) % compileWindow
	}
	m.mu.Unlock()
}

// RecordScheduled records an armed debounce timer, and whether it replaced
// a pending one.
func (m *Metrics) RecordScheduled(superseded bool) {
	if m == nil {
		return
	}
	m.CompilesSched.Inc()
	if superseded {
		m.CompilesDropped.Inc()
	}
}

// RecordMount records a sandbox mount under generation.
func (m *Metrics) RecordMount(generation uint64) {
	if m == nil {
		return
	}
	m.MountsTotal.Inc()

	m.mu.Lock()
	m.snapshot.TotalMounts++
	if generation > m.maxGeneration {
		m.maxGeneration = generation
		m.LatestGeneration.Set(float64(generation))
	}
	m.mu.Unlock()
}

// RecordReport records an overlay report.
func (m *Metrics) RecordReport(channel string) {
	if m == nil || channel == "" {
		return
	}
	m.ReportsTotal.WithLabelValues(channel).Inc()
}

// RecordSave records a save outcome.
func (m *Metrics) RecordSave(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SavesTotal.WithLabelValues("error").Inc()
		m.mu.Lock()
		m.snapshot.SaveFailures++
		m.mu.Unlock()
		return
	}
	m.SavesTotal.WithLabelValues("ok").Inc()
}

// RecordProbe records a CDN probe outcome.
func (m *Metrics) RecordProbe(result string) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(result).Inc()
}

// SetWorkspacesActive sets the number of open workspaces
func (m *Metrics) SetWorkspacesActive(count int) {
	if m == nil {
		return
	}
	m.WorkspacesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveWorkspaces = int64(count)
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// CompileSummary summarises the recent compile window.
func (m *Metrics) CompileSummary() CompileSummary {
	m.mu.RLock()
	samples := append([]float64(nil), m.compiles...)
	m.mu.RUnlock()

	if len(samples) == 0 {
		return CompileSummary{}
	}
	sort.Float64s(samples)
	s := CompileSummary{
		Samples: len(samples),
		Mean:    stat.Mean(samples, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, samples, nil),
		Max:     samples[len(samples)-1],
	}
	if len(samples) > 1 {
		s.StdDev = stat.StdDev(samples, nil)
	}
	return s
}

// Uptime returns how long the collector has existed.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
