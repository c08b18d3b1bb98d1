package stats

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// latencies are recorded in microseconds between 1us and 10 minutes
	minLatencyUs = 1
	maxLatencyUs = 600_000_000
	sigFigs      = 3
)

// Metrics collects latency and outcome statistics for a batch run
type Metrics struct {
	mu sync.RWMutex

	// Counters
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	// Per-file metrics
	requestMetrics map[string]*RequestMetrics

	startTime time.Time
	endTime   time.Time
}

// RequestMetrics holds metrics for one descriptor file
type RequestMetrics struct {
	Name      string
	Total     atomic.Int64
	Success   atomic.Int64
	Errors    atomic.Int64
	Histogram *hdrhistogram.Histogram
	mu        sync.Mutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram:      hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		requestMetrics: make(map[string]*RequestMetrics),
	}
}

// Start marks the beginning of the batch
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.endTime = time.Time{}
	m.mu.Unlock()
}

// Stop marks the end of the batch
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

// Record adds one completed or failed request. A request counts as a
// success when it finished with a 2xx or 3xx status.
func (m *Metrics) Record(name string, duration time.Duration, status int, err error) {
	ok := err == nil && status >= 200 && status < 400

	m.totalRequests.Add(1)
	if ok {
		m.successRequests.Add(1)
	} else {
		m.errorRequests.Add(1)
	}

	latency := clampLatency(duration)

	m.mu.Lock()
	_ = m.histogram.RecordValue(latency)
	rm, found := m.requestMetrics[name]
	if !found && name != "" {
		rm = &RequestMetrics{
			Name:      name,
			Histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		}
		m.requestMetrics[name] = rm
	}
	m.mu.Unlock()

	if rm == nil {
		return
	}

	rm.Total.Add(1)
	if ok {
		rm.Success.Add(1)
	} else {
		rm.Errors.Add(1)
	}

	rm.mu.Lock()
	_ = rm.Histogram.RecordValue(latency)
	rm.mu.Unlock()
}

// Summary is the final view of the collected metrics
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	// Per-file breakdown, sorted by name
	Requests []*RequestSummary
}

// RequestSummary holds the summary for a single file
type RequestSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
	Mean    time.Duration
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errors := m.errorRequests.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}

	successRate := float64(0)
	errorRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	summary := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
	}

	if total > 0 {
		summary.P50 = us(m.histogram.ValueAtQuantile(50))
		summary.P95 = us(m.histogram.ValueAtQuantile(95))
		summary.P99 = us(m.histogram.ValueAtQuantile(99))
		summary.Min = us(m.histogram.Min())
		summary.Max = us(m.histogram.Max())
		summary.Mean = us(int64(m.histogram.Mean()))
		summary.StdDev = us(int64(m.histogram.StdDev()))
	}

	for name, rm := range m.requestMetrics {
		rm.mu.Lock()
		summary.Requests = append(summary.Requests, &RequestSummary{
			Name:    name,
			Total:   rm.Total.Load(),
			Success: rm.Success.Load(),
			Errors:  rm.Errors.Load(),
			P50:     us(rm.Histogram.ValueAtQuantile(50)),
			P95:     us(rm.Histogram.ValueAtQuantile(95)),
			Max:     us(rm.Histogram.Max()),
			Mean:    us(int64(rm.Histogram.Mean())),
		})
		rm.mu.Unlock()
	}
	sort.Slice(summary.Requests, func(i, j int) bool {
		return summary.Requests[i].Name < summary.Requests[j].Name
	})

	return summary
}

// Reset drops every recorded value so the collector can be reused for the
// next scheduled batch.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests.Store(0)
	m.successRequests.Store(0)
	m.errorRequests.Store(0)
	m.histogram.Reset()
	m.requestMetrics = make(map[string]*RequestMetrics)
	m.startTime = time.Time{}
	m.endTime = time.Time{}
}

// FormatPercent renders a 0..1 ratio as a percentage
func FormatPercent(f float64) string {
	return FormatFloat(f*100) + "%"
}

func FormatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
