package runner

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/capis/packages/db"
	"github.com/abdul-hamid-achik/capis/packages/export/metrics"
	"github.com/abdul-hamid-achik/capis/packages/stats"
)

// Hook observes a batch. Hook errors are logged and never change the
// outcome of the run.
type Hook interface {
	BeforeRun(ctx context.Context, run *RunResult) error
	AfterRequest(ctx context.Context, seq int, res *RequestResult) error
	AfterRun(ctx context.Context, run *RunResult) error
}

// HistoryHook stores every run and its requests in a history database
type HistoryHook struct {
	history *db.History
	runID   string
}

func NewHistoryHook(h *db.History) *HistoryHook {
	return &HistoryHook{history: h}
}

func (h *HistoryHook) BeforeRun(ctx context.Context, run *RunResult) error {
	id, err := h.history.BeginRun(ctx, run.StartedAt)
	if err != nil {
		h.runID = ""
		return fmt.Errorf("starting history run: %w", err)
	}
	h.runID = id
	run.ID = id
	return nil
}

func (h *HistoryHook) AfterRequest(ctx context.Context, seq int, res *RequestResult) error {
	if h.runID == "" {
		return nil
	}

	rec := db.RequestRecord{
		Seq:      seq,
		File:     res.File,
		Status:   res.StatusCode(),
		Duration: res.Duration,
		Stage:    string(res.Stage),
	}
	if res.Request != nil {
		rec.Method = res.Request.Method
		rec.URL = res.Request.URL
	}
	if res.Response != nil {
		rec.Duration = res.Response.Duration
	}
	if res.Error != nil {
		rec.Error = res.Error.Error()
	}

	if err := h.history.RecordRequest(ctx, h.runID, rec); err != nil {
		return fmt.Errorf("recording request: %w", err)
	}
	return nil
}

func (h *HistoryHook) AfterRun(ctx context.Context, run *RunResult) error {
	if h.runID == "" {
		return nil
	}

	err := h.history.FinishRun(ctx, db.RunRecord{
		ID:        h.runID,
		StartedAt: run.StartedAt,
		Duration:  run.Duration,
		Passed:    run.Passed,
		Failed:    run.Failed,
		Errored:   run.Errored,
	})
	if err != nil {
		return fmt.Errorf("finishing history run: %w", err)
	}
	return nil
}

// StatsHook feeds sent requests into a latency collector. The collector is
// reset at the start of every run.
type StatsHook struct {
	metrics *stats.Metrics
}

func NewStatsHook(m *stats.Metrics) *StatsHook {
	return &StatsHook{metrics: m}
}

func (s *StatsHook) BeforeRun(context.Context, *RunResult) error {
	s.metrics.Reset()
	s.metrics.Start()
	return nil
}

func (s *StatsHook) AfterRequest(_ context.Context, _ int, res *RequestResult) error {
	if res.Request == nil || res.Skipped {
		return nil
	}

	d := res.Duration
	if res.Response != nil {
		d = res.Response.Duration
	}
	s.metrics.Record(res.File, d, res.StatusCode(), res.Error)
	return nil
}

func (s *StatsHook) AfterRun(context.Context, *RunResult) error {
	s.metrics.Stop()
	return nil
}

// MetricsHook records outcomes with a metrics collector and flushes it when
// the run ends.
type MetricsHook struct {
	collector *metrics.Collector
}

func NewMetricsHook(c *metrics.Collector) *MetricsHook {
	return &MetricsHook{collector: c}
}

func (m *MetricsHook) BeforeRun(context.Context, *RunResult) error {
	return nil
}

func (m *MetricsHook) AfterRequest(_ context.Context, _ int, res *RequestResult) error {
	outcome := res.Outcome()
	if outcome == OutcomeSkipped {
		return nil
	}

	metric := &metrics.RequestMetric{
		File:       res.File,
		StatusCode: res.StatusCode(),
		Duration:   res.Duration,
		Outcome:    metrics.Outcome(outcome),
	}
	if res.Request != nil {
		metric.Method = res.Request.Method
	}
	if res.Response != nil {
		metric.Duration = res.Response.Duration
	}
	return m.collector.Record(metric)
}

func (m *MetricsHook) AfterRun(context.Context, *RunResult) error {
	return m.collector.Flush()
}
