// Package schedule repeats batch runs on a cron schedule.
//
// Specs use the standard five cron fields with an optional leading seconds
// field, or a descriptor such as "@hourly" or "@every 30s". A run that is
// still in progress when its next tick arrives causes that tick to be
// skipped, so batches never overlap.
package schedule
