package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/capis/packages/core/config"
	"github.com/abdul-hamid-achik/capis/packages/core/runner"
	"github.com/abdul-hamid-achik/capis/packages/db"
	"github.com/abdul-hamid-achik/capis/packages/export/metrics"
	"github.com/abdul-hamid-achik/capis/packages/logger"
	"github.com/abdul-hamid-achik/capis/packages/output"
	"github.com/abdul-hamid-achik/capis/packages/schedule"
	"github.com/abdul-hamid-achik/capis/packages/stats"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Send the requests described in descriptor files",
	Long: `Send the requests described in .yaml or .yml descriptor files.

Directories are walked recursively. Each file holds one request and is
processed on its own, in order. The command exits 0 even when requests
fail; see the report for per-file outcomes.

Examples:
  capis run get.yaml
  capis run ./requests/ -o junit --output-file report.xml
  capis run ./requests/ --rate 5 --history history.db
  capis run api.yaml --select body.id --select header.Location -v
  capis run ./requests/ --schedule "*/5 * * * *" --metrics-file capis.prom
  capis run ./requests/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	verboseFlag      bool
	noColorFlag      bool
	outputFlag       string
	outputFileFlag   string
	timeoutFlag      string
	rateFlag         float64
	maxBodyBytesFlag int
	historyFlag      string
	metricsFileFlag  string
	selectFlag       []string
	watchFlag        bool
	scheduleFlag     string
	dryRunFlag       bool
	configFlag       string
)

func init() {
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("CAPIS_CONFIG", ""), "Path to config file (env: CAPIS_CONFIG)")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log request and response details")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: CAPIS_NOCOLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "console", "Output format: console, json, junit, tap (env: CAPIS_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", "", "Write output to file (default: stdout) (env: CAPIS_OUTPUTFILE)")
	runCmd.Flags().StringArrayVar(&selectFlag, "select", nil, "Value to pick from each response, e.g. body.id, header.Location, status (repeatable)")

	// Execution flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", "", "Client timeout for every request (e.g., 30s, 1m); descriptors may set their own")
	runCmd.Flags().Float64Var(&rateFlag, "rate", 0, "Maximum requests started per second, 0 for no limit (env: CAPIS_RATE)")
	runCmd.Flags().IntVar(&maxBodyBytesFlag, "max-body-bytes", 0, "Abort responses whose body exceeds this size, 0 for no limit (env: CAPIS_MAXBODYBYTES)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", getEnvBool("CAPIS_DRY_RUN", false), "Parse and build requests without sending them (env: CAPIS_DRY_RUN)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")
	runCmd.Flags().StringVar(&scheduleFlag, "schedule", "", "Re-run on a cron schedule, e.g. \"*/5 * * * *\" or \"@every 1m\" (env: CAPIS_SCHEDULE)")

	// Persistence flags
	runCmd.Flags().StringVar(&historyFlag, "history", "", "Record runs in a database: sqlite path, sqlite://, or mysql:// (env: CAPIS_HISTORY)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics to this file after every run (env: CAPIS_METRICSFILE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(format string, w io.Writer, verbose, noColor bool) Formatter {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w))
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w))
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w))
	default: // "console"
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		)
	}
}

// session holds everything a run needs, so watch and schedule modes can
// repeat it.
type session struct {
	cmd     *cobra.Command
	cfg     *config.Config
	args    []string
	runner  *runner.Runner
	stats   *stats.Metrics
	closers []func() error
	log     *zap.Logger
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithFlags(configFlag, cmd.Flags())
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	if err := logger.Init(cfg.Log, logger.Options{Verbose: cfg.GetVerbose(), NoColor: cfg.GetNoColor()}); err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer func() { _ = logger.Sync() }()

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
	}

	if cfg.Schedule != "" {
		if err := schedule.Validate(cfg.Schedule); err != nil {
			return withExitCode(ExitConfigError, err)
		}
		if watchFlag {
			return withExitCode(ExitUsageError, fmt.Errorf("--watch and --schedule cannot be combined"))
		}
	}

	files := collectFiles(args)
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml descriptor files found"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cmd, cfg, args, timeout)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer s.close()

	switch {
	case cfg.Schedule != "":
		return s.scheduled(ctx)
	case watchFlag:
		s.runOnce(ctx, files)
		return s.watch(ctx, files)
	default:
		s.runOnce(ctx, files)
		return nil
	}
}

func newSession(ctx context.Context, cmd *cobra.Command, cfg *config.Config, args []string, timeout time.Duration) (*session, error) {
	s := &session{
		cmd:   cmd,
		cfg:   cfg,
		args:  args,
		stats: stats.NewMetrics(),
		log:   logger.GetLogger(),
	}

	hooks := []runner.Hook{runner.NewStatsHook(s.stats)}

	if cfg.History != "" {
		history, err := db.OpenHistory(ctx, cfg.History)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, history.Close)
		hooks = append(hooks, runner.NewHistoryHook(history))
	}

	if cfg.MetricsFile != "" {
		exporter, err := metrics.NewPrometheusExporter(metrics.WithTextfile(cfg.MetricsFile))
		if err != nil {
			s.close()
			return nil, err
		}
		collector := metrics.NewCollector(exporter)
		s.closers = append(s.closers, collector.Close)
		hooks = append(hooks, runner.NewMetricsHook(collector))
	}

	s.runner = runner.NewRunner(&runner.Config{
		Verbose:         cfg.GetVerbose(),
		Timeout:         timeout,
		FollowRedirects: cfg.GetFollowRedirects(),
		MaxRedirects:    cfg.MaxRedirects,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		Rate:            cfg.Rate,
		DryRun:          dryRunFlag,
		Select:          selectFlag,
		DefaultHeaders:  cfg.Headers,
	}, runner.WithLogger(s.log), runner.WithHooks(hooks...))

	return s, nil
}

func (s *session) close() {
	if s.runner != nil {
		s.runner.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("Closing resource failed", zap.Error(err))
		}
	}
}

// runOnce runs the batch and writes one report. Report errors are logged;
// they never change the exit code.
func (s *session) runOnce(ctx context.Context, files []string) {
	w := s.cmd.OutOrStdout()
	if s.cfg.OutputFile != "" {
		f, err := os.Create(s.cfg.OutputFile)
		if err != nil {
			s.log.Error("Cannot create output file", zap.String("path", s.cfg.OutputFile), zap.Error(err))
			return
		}
		defer f.Close()
		w = f
	}

	formatter := newFormatter(s.cfg.Output, w, s.cfg.GetVerbose(), s.cfg.GetNoColor())
	formatter.FormatHeader(version)

	result := s.runner.Run(ctx, files)
	formatter.FormatResult(result)

	if console, ok := formatter.(*output.ConsoleFormatter); ok {
		console.FormatStats(s.stats.GetSummary())
	}
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(result.Duration); err != nil {
			s.log.Error("Writing output failed", zap.Error(err))
		}
	}
}

func (s *session) scheduled(ctx context.Context) error {
	sched := schedule.New(schedule.WithLogger(s.log))

	var entry cron.EntryID
	entry, err := sched.Add(s.cfg.Schedule, func(ctx context.Context) {
		s.runOnce(ctx, collectFiles(s.args))
		s.log.Info("Next run", zap.Time("at", sched.Next(entry)))
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	s.log.Info("Waiting for schedule", zap.String("schedule", s.cfg.Schedule))
	return sched.Run(ctx)
}

func (s *session) watch(ctx context.Context, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Add files and directories to watch
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				s.log.Warn("Cannot watch directory", zap.String("dir", dir), zap.Error(err))
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories
	for _, arg := range s.args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(s.cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes; reruns happen on this goroutine
	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case name := <-rerun:
			fmt.Fprintf(s.cmd.ErrOrStderr(), "\nFile changed: %s\nRe-running...\n", name)
			s.runOnce(ctx, collectFiles(s.args))
			fmt.Fprintf(s.cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isDescriptorFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Watcher error", zap.Error(err))
		}
	}
}

// collectFiles expands directories into the descriptor files below them.
// A path that cannot be read is kept so the runner reports it as a failed
// input instead of dropping it from the batch.
func collectFiles(args []string) []string {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			logger.Warn("Cannot access path", zap.String("path", arg), zap.Error(err))
			files = append(files, arg)
			continue
		}

		if !info.IsDir() {
			// explicit files are taken as given
			files = append(files, arg)
			continue
		}

		_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				logger.Warn("Cannot access path", zap.String("path", path), zap.Error(err))
				return nil
			}
			if !info.IsDir() && isDescriptorFile(path) {
				files = append(files, path)
			}
			return nil
		})
	}

	return files
}

// isDescriptorFile matches .yaml and .yml files that are not capis config
// files.
func isDescriptorFile(path string) bool {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	base := filepath.Base(path)
	for _, name := range config.ConfigFilenames {
		if base == name {
			return false
		}
	}
	return true
}
