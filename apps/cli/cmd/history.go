package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/capis/packages/core/config"
	"github.com/abdul-hamid-achik/capis/packages/db"
)

var (
	historyDBFlag     string
	historyLimitFlag  int
	historyConfigFlag string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show runs recorded with --history",
	Long: `List the most recent runs stored in a history database, or the
requests of a single run when a run id is given.

The store defaults to the history setting of the config file.

Examples:
  capis history --history history.db
  capis history -n 5
  capis history 3f2c9a1e-6f1b-4c59-9d3e-0b7c2f51a8d4`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "history", "", "History database: sqlite path, sqlite://, or mysql://")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyConfigFlag, "config", getEnvString("CAPIS_CONFIG", ""), "Path to config file (env: CAPIS_CONFIG)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(historyConfigFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	dsn := cfg.History
	if cmd.Flags().Changed("history") {
		dsn = historyDBFlag
	}
	if dsn == "" {
		return withExitCode(ExitUsageError, errors.New("no history database configured (use --history or set history in capis.yaml)"))
	}
	if historyLimitFlag <= 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("invalid limit %d", historyLimitFlag))
	}

	h, err := db.OpenHistory(cmd.Context(), dsn)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		records, err := h.Requests(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRequests(out, args[0], records)
		return nil
	}

	runs, err := h.RecentRuns(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(w io.Writer, runs []db.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("%-36s  %-19s  %6s  %6s  %7s  %8s", "RUN", "STARTED", "PASSED", "FAILED", "ERRORED", "TIME")))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %6d  %6d  %7d  %6dms\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Passed, r.Failed, r.Errored, r.Duration.Milliseconds())
	}
}

func printRequests(w io.Writer, runID string, records []db.RequestRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No requests recorded for run %s\n", runID)
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "Run %s\n", runID)
	for _, r := range records {
		name := filepath.Base(r.File)
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "  %3d %s %s %s\n", r.Seq, red("✗"), name, red(fmt.Sprintf("(%s: %s)", r.Stage, r.Error)))
		case r.Status >= 200 && r.Status < 400:
			fmt.Fprintf(w, "  %3d %s %s %s %s (%d, %dms)\n", r.Seq, green("✓"), name, r.Method, r.URL, r.Status, r.Duration.Milliseconds())
		case r.Status == 0:
			fmt.Fprintf(w, "  %3d %s %s %s %s\n", r.Seq, yellow("-"), name, r.Method, r.URL)
		default:
			fmt.Fprintf(w, "  %3d %s %s %s %s (%d, %dms)\n", r.Seq, red("✗"), name, r.Method, r.URL, r.Status, r.Duration.Milliseconds())
		}
	}
}
