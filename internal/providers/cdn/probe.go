package cdn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shaiksadikjanu/REACT-EDITOR/internal/domain/preview"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/monitoring"
	"github.com/shaiksadikjanu/REACT-EDITOR/internal/infrastructure/resilience"
)

// Status is the outcome of probing one dependency.
type Status string

const (
	StatusOK          Status = "ok"
	StatusMissing     Status = "missing"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
)

// Config controls probing.
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RatePerSecond caps outgoing probes; zero means unlimited.
	RatePerSecond float64
	UserAgent     string
}

// DefaultConfig returns the probe defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		Retries:       2,
		RetryWait:     200 * time.Millisecond,
		RetryMaxWait:  2 * time.Second,
		RatePerSecond: 10,
		UserAgent:     "react-editor-preview/1.0",
	}
}

// Result describes one probed dependency.
type Result struct {
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Status     Status        `json:"status"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Report is the outcome of probing a dependency list.
type Report struct {
	Results   []Result  `json:"results"`
	Reachable bool      `json:"reachable"`
	Breaker   string    `json:"breaker"`
	CheckedAt time.Time `json:"checked_at"`
}

// Option configures a Prober.
type Option func(*Prober)

// WithMetrics records probe outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) { p.client.SetTransport(rt) }
}

// WithClock sets the breaker clock.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

// Prober checks that dependency script URLs resolve on the CDN.
type Prober struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewProber creates a prober. Server errors are retried; a run of transport
// failures or server errors opens the breaker and later probes are reported
// as unavailable without touching the network.
func NewProber(config Config, logger *zap.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Pooled transport; retries are resty's so the breaker sees one outcome per probe.
	transport := retryablehttp.NewClient().HTTPClient.Transport

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(config.RetryMaxWait).
		SetHeader("User-Agent", config.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})
	client.SetTransport(transport)

	limit := rate.Inf
	burst := 0
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
		burst = max(1, int(config.RatePerSecond))
	}

	p := &Prober{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.breaker = resilience.New("cdn", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		Now:         p.now,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("CDN breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return p
}

// BreakerState returns the current breaker state.
func (p *Prober) BreakerState() resilience.State {
	return p.breaker.State()
}

// Probe checks every dependency concurrently. Results keep the order of deps.
func (p *Prober) Probe(ctx context.Context, deps []preview.Dependency) Report {
	results := make([]Result, len(deps))

	var wg sync.WaitGroup
	for i, dep := range deps {
		wg.Add(1)
		go func(i int, dep preview.Dependency) {
			defer wg.Done()
			results[i] = p.probe(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	reachable := true
	for _, r := range results {
		if r.Status != StatusOK {
			reachable = false
		}
	}

	return Report{
		Results:   results,
		Reachable: reachable,
		Breaker:   p.breaker.State().String(),
		CheckedAt: p.now(),
	}
}

func (p *Prober) probe(ctx context.Context, dep preview.Dependency) Result {
	start := time.Now()
	res := Result{Name: dep.Name, URL: dep.URL}
	defer func() {
		res.Duration = time.Since(start)
		p.metrics.RecordProbe(string(res.Status))
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		res.Status, res.Error = StatusError, fmt.Sprintf("rate limit: %v", err)
		return res
	}

	resp, err := resilience.Execute(p.breaker, func() (*resty.Response, error) {
		resp, err := p.client.R().SetContext(ctx).Head(dep.URL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("cdn returned %s", resp.Status())
		}
		return resp, nil
	})

	if resp != nil {
		res.StatusCode = resp.StatusCode()
	}

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		res.Status, res.Error = StatusUnavailable, err.Error()
	case err != nil:
		res.Status, res.Error = StatusError, err.Error()
		p.logger.Debug("Dependency probe failed", zap.String("url", dep.URL), zap.Error(err))
	case res.StatusCode == http.StatusNotFound:
		res.Status = StatusMissing
	case res.StatusCode >= http.StatusBadRequest:
		res.Status, res.Error = StatusError, resp.Status()
	default:
		res.Status = StatusOK
	}
	return res
}
