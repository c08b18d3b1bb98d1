// Package stats aggregates request latencies of a batch run into
// HdrHistogram percentiles.
package stats
