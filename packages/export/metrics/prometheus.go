package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets are request duration buckets in seconds
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PrometheusExporter keeps request metrics in its own registry and writes
// them in the Prometheus text format, suitable for the node_exporter
// textfile collector.
type PrometheusExporter struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	path     string
	buckets  []float64

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  prometheus.Gauge
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithTextfile sets the file Flush writes to
func WithTextfile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.path = path
	}
}

func WithBuckets(buckets []float64) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.buckets = buckets
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) (*PrometheusExporter, error) {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		buckets:  DefaultBuckets,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capis_requests_total",
		Help: "Number of descriptor files processed, by outcome, status code and method",
	}, []string{"outcome", "code", "method"})
	p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "capis_request_duration_seconds",
		Help:    "Duration of completed requests",
		Buckets: p.buckets,
	}, []string{"method"})
	p.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "capis_last_flush_timestamp_seconds",
		Help: "Unix time of the last metrics flush",
	})

	for _, c := range []prometheus.Collector{p.requests, p.duration, p.lastRun} {
		if err := p.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}

	return p, nil
}

// Registry exposes the underlying registry, e.g. for serving or tests
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// ExportSingle records a single request metric
func (p *PrometheusExporter) ExportSingle(m *RequestMetric) error {
	if m == nil {
		return nil
	}

	code := ""
	if m.StatusCode > 0 {
		code = strconv.Itoa(m.StatusCode)
	}
	method := m.Method
	if method == "" {
		method = "none"
	}

	p.requests.WithLabelValues(string(m.Outcome), code, method).Inc()
	if m.Outcome != OutcomeErrored && m.StatusCode > 0 {
		p.duration.WithLabelValues(method).Observe(m.Duration.Seconds())
	}
	return nil
}

// Flush writes the registry to the configured text file
func (p *PrometheusExporter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastRun.SetToCurrentTime()
	if p.path == "" {
		return nil
	}

	if dir := filepath.Dir(p.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(p.path, p.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}

// Close flushes any pending data
func (p *PrometheusExporter) Close() error {
	return p.Flush()
}
