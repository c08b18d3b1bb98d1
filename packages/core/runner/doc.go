// Package runner executes capis descriptor files.
//
// Each file goes through the same pipeline: parse, build, execute,
// capture, and release. Files are processed strictly one after another and
// a failing file never stops the batch. An optional rate limit paces the
// start of each file.
//
// Results are handed to hooks as they are produced. The package provides
// hooks that persist a run history, collect latency statistics and export
// Prometheus metrics.
package runner
