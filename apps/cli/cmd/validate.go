package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/capis/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Parse descriptor files without sending requests",
	Long: `Parse descriptor files and report any that are malformed.

Examples:
  capis validate get.yaml
  capis validate ./requests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files := collectFiles(args)
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml descriptor files found"))
	}

	failed := 0
	for _, file := range files {
		_, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			failed++
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if failed > 0 {
		return withExitCode(ExitParseError, fmt.Errorf("validation failed: %d of %d files", failed, len(files)))
	}

	return nil
}
