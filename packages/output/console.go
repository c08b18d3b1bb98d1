package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/capis/packages/core/runner"
	"github.com/abdul-hamid-achik/capis/packages/stats"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		name := filepath.Base(r.File)

		switch r.Outcome() {
		case runner.OutcomeSkipped:
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", yellow("-"), name, r.Request.Method, r.Request.URL)
			continue
		case runner.OutcomeErrored:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		case runner.OutcomeFailed:
			if r.Error != nil {
				fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", red("✗"), name, r.Request.Method, r.Request.URL, red(fmt.Sprintf("(%v)", r.Error)))
				continue
			}
			fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", red("✗"), name, r.Request.Method, r.Request.URL,
				cyan(fmt.Sprintf("(%d, %dms)", r.StatusCode(), r.Response.DurationMs())))
		default:
			fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", green("✓"), name, r.Request.Method, r.Request.URL,
				cyan(fmt.Sprintf("(%d, %dms)", r.StatusCode(), r.Response.DurationMs())))
		}

		if !f.verbose {
			continue
		}
		for _, c := range r.Response.SetCookies {
			fmt.Fprintf(f.writer, "    %s\n", c)
		}
		if len(r.Selections) > 0 {
			keys := make([]string, 0, len(r.Selections))
			for k := range r.Selections {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Fprintf(f.writer, "    Selections:\n")
			for _, k := range keys {
				fmt.Fprintf(f.writer, "      %s = %s\n", k, formatValue(r.Selections[k], 100))
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Requests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", result.Errored)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", result.Total())
	fmt.Fprintf(f.writer, "Time:     %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

// FormatStats prints the latency summary of a run. Nothing is printed when
// no request was sent.
func (f *ConsoleFormatter) FormatStats(s *stats.Summary) {
	if s == nil || s.TotalRequests == 0 {
		return
	}
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold("Latency"))
	fmt.Fprintf(f.writer, "  min %s  p50 %s  p95 %s  p99 %s  max %s\n",
		s.Min, s.P50, s.P95, s.P99, s.Max)
	fmt.Fprintf(f.writer, "  mean %s  stddev %s  success %s  rate %s req/s\n",
		s.Mean, s.StdDev, stats.FormatPercent(s.SuccessRate), stats.FormatFloat(s.RPS))
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("capis"), version)
}
