// Package metrics exports request outcomes of capis runs.
package metrics

import (
	"errors"
	"time"
)

// Outcome classifies a request the same way the run summary does
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeErrored Outcome = "errored"
)

// RequestMetric is the outcome of a single descriptor file
type RequestMetric struct {
	File       string
	Method     string
	StatusCode int
	Duration   time.Duration
	Outcome    Outcome
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// ExportSingle records one request metric
	ExportSingle(metric *RequestMetric) error

	// Flush writes everything recorded so far to the target destination
	Flush() error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Collector fans request metrics out to its exporters
type Collector struct {
	exporters []Exporter
	count     int
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{exporters: exporters}
}

// Record records a request metric with every exporter
func (c *Collector) Record(m *RequestMetric) error {
	c.count++
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.ExportSingle(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of recorded metrics
func (c *Collector) Count() int {
	return c.count
}

// Flush exports all recorded metrics
func (c *Collector) Flush() error {
	for _, exp := range c.exporters {
		if err := exp.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters
func (c *Collector) Close() error {
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
