package output

import (
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/abdul-hamid-achik/capis/packages/core/runner"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary  `json:"summary"`
	Results  []JSONResult `json:"results"`
	Duration float64      `json:"duration"`
	Time     string       `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// JSONResult represents one descriptor file
type JSONResult struct {
	File       string         `json:"file"`
	RunID      string         `json:"runId,omitempty"`
	Outcome    string         `json:"outcome"`
	Stage      string         `json:"stage"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Request    *JSONRequest   `json:"request,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Selections map[string]any `json:"selections,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookie  string            `json:"cookie,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode  int      `json:"statusCode"`
	ContentType string   `json:"contentType,omitempty"`
	SetCookies  []string `json:"setCookies,omitempty"`
	BodySize    int      `json:"bodySize"`
	Duration    float64  `json:"duration"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer  io.Writer
	summary JSONSummary
	results []JSONResult
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.summary.Total += result.Total()
	f.summary.Passed += result.Passed
	f.summary.Failed += result.Failed
	f.summary.Errored += result.Errored
	f.summary.Skipped += result.Skipped

	for _, r := range result.Results {
		jr := JSONResult{
			File:     r.File,
			RunID:    result.ID,
			Outcome:  string(r.Outcome()),
			Stage:    string(r.Stage),
			Duration: float64(r.Duration.Milliseconds()),
		}

		if r.Error != nil {
			jr.Error = r.Error.Error()
		}

		if r.Request != nil {
			jr.Request = &JSONRequest{
				Method: r.Request.Method,
				URL:    r.Request.URL,
				Cookie: r.Request.Cookie,
				Body:   string(r.Request.Body),
			}
			if len(r.Request.Headers) > 0 {
				jr.Request.Headers = make(map[string]string, len(r.Request.Headers))
				for _, h := range r.Request.Headers {
					jr.Request.Headers[h.Key] = h.Value
				}
			}
		}

		if r.Response != nil {
			jr.Response = &JSONResponse{
				StatusCode:  r.Response.StatusCode,
				ContentType: r.Response.ContentType(),
				SetCookies:  r.Response.SetCookies,
				BodySize:    len(r.Response.Body),
				Duration:    float64(r.Response.Duration.Milliseconds()),
			}
		}

		if len(r.Selections) > 0 {
			jr.Selections = r.Selections
		}

		f.results = append(f.results, jr)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	output := JSONOutput{
		Summary:  f.summary,
		Results:  f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
