package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/capis/packages/core/lint"
)

var strictLint bool

var lintCmd = &cobra.Command{
	Use:   "lint <file|directory>...",
	Short: "Check descriptor files against the descriptor schema",
	Long: `Check descriptor files for keys and values the parser would ignore:
unknown keys, unsupported methods, incomplete header or cookie entries.

Warnings do not fail the command unless --strict is set.

Examples:
  capis lint ./requests/
  capis lint get.yaml --strict`,
	Args: cobra.MinimumNArgs(1),
	RunE: lintCommand,
}

func init() {
	lintCmd.Flags().BoolVar(&strictLint, "strict", false, "Exit non-zero when any file has warnings")
}

func lintCommand(cmd *cobra.Command, args []string) error {
	files := collectFiles(args)
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml descriptor files found"))
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	out := cmd.OutOrStdout()

	warned := 0
	for _, file := range files {
		result, err := lint.LintFile(file)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("error:"), err)
			warned++
			continue
		}
		if result.Valid() {
			continue
		}

		warned++
		for _, issue := range result.Issues {
			fmt.Fprintf(out, "%s %s: %s\n", yellow("warning:"), file, issue)
		}
	}

	fmt.Fprintf(out, "%d of %d files with warnings\n", warned, len(files))

	if strictLint && warned > 0 {
		return withExitCode(ExitCheckFailure, lint.ErrIssues)
	}
	return nil
}
