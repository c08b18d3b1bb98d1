// Package logger configures the process-wide zap logger.
package logger
