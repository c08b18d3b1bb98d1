package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// The schema sticks to types both SQLite and MySQL accept
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR(36) PRIMARY KEY,
		started_at BIGINT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		run_id VARCHAR(36) NOT NULL,
		seq INTEGER NOT NULL,
		file VARCHAR(1024) NOT NULL,
		method VARCHAR(16) NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		stage VARCHAR(16) NOT NULL,
		error TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// RunRecord summarizes one batch run
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Errored   int
}

// RequestRecord is the outcome of one descriptor file within a run
type RequestRecord struct {
	Seq      int
	File     string
	Method   string
	URL      string
	Status   int
	Duration time.Duration
	Stage    string
	Error    string
}

// History records runs and their requests
type History struct {
	client *Client
}

// OpenHistory connects to the store and creates the tables if needed
func OpenHistory(ctx context.Context, connectionString string) (*History, error) {
	client, err := NewClient(connectionString)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if err := client.Exec(ctx, stmt); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("creating history schema: %w", err)
		}
	}

	return &History{client: client}, nil
}

func (h *History) Close() error {
	return h.client.Close()
}

// BeginRun stores a new run and returns its id
func (h *History) BeginRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	err := h.client.Exec(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, startedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

func (h *History) RecordRequest(ctx context.Context, runID string, rec RequestRecord) error {
	err := h.client.Exec(ctx,
		`INSERT INTO requests (run_id, seq, file, method, url, status, duration_ms, stage, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Seq, rec.File, rec.Method, rec.URL, rec.Status, rec.Duration.Milliseconds(), rec.Stage, rec.Error)
	if err != nil {
		return fmt.Errorf("recording request: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run
func (h *History) FinishRun(ctx context.Context, run RunRecord) error {
	err := h.client.Exec(ctx,
		`UPDATE runs SET duration_ms = ?, passed = ?, failed = ?, errored = ? WHERE id = ?`,
		run.Duration.Milliseconds(), run.Passed, run.Failed, run.Errored, run.ID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (h *History) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	result, err := h.client.Query(ctx,
		`SELECT id, started_at, duration_ms, passed, failed, errored FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}

	runs := make([]RunRecord, 0, len(result.Rows))
	for _, row := range result.Rows {
		runs = append(runs, RunRecord{
			ID:        fmt.Sprint(row["id"]),
			StartedAt: time.UnixMilli(toInt64(row["started_at"])),
			Duration:  time.Duration(toInt64(row["duration_ms"])) * time.Millisecond,
			Passed:    int(toInt64(row["passed"])),
			Failed:    int(toInt64(row["failed"])),
			Errored:   int(toInt64(row["errored"])),
		})
	}
	return runs, nil
}

// Requests returns the requests recorded for a run in order
func (h *History) Requests(ctx context.Context, runID string) ([]RequestRecord, error) {
	result, err := h.client.Query(ctx,
		`SELECT seq, file, method, url, status, duration_ms, stage, error FROM requests WHERE run_id = ? ORDER BY seq`,
		runID)
	if err != nil {
		return nil, err
	}

	records := make([]RequestRecord, 0, len(result.Rows))
	for _, row := range result.Rows {
		records = append(records, RequestRecord{
			Seq:      int(toInt64(row["seq"])),
			File:     fmt.Sprint(row["file"]),
			Method:   fmt.Sprint(row["method"]),
			URL:      fmt.Sprint(row["url"]),
			Status:   int(toInt64(row["status"])),
			Duration: time.Duration(toInt64(row["duration_ms"])) * time.Millisecond,
			Stage:    fmt.Sprint(row["stage"]),
			Error:    fmt.Sprint(row["error"]),
		})
	}
	return records, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var out int64
		_, _ = fmt.Sscan(n, &out)
		return out
	default:
		return 0
	}
}
