package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/capis/packages/core/parser"
	"github.com/abdul-hamid-achik/capis/packages/http"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|directory>...",
	Short: "Print parsed descriptors and the requests they build",
	Long: `Parse descriptor files and print every field, followed by the
request line that run would send.

Examples:
  capis inspect get.yaml
  capis inspect ./requests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: inspectCommand,
}

func inspectCommand(cmd *cobra.Command, args []string) error {
	files := collectFiles(args)
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no .yaml or .yml descriptor files found"))
	}

	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	out := cmd.OutOrStdout()

	for _, file := range files {
		fmt.Fprintf(out, "\n%s\n", bold(file))

		d, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("Error:"), err)
			continue
		}
		d.Dump(out)

		req, release, err := http.BuildRequest(d, http.BuildOptions{})
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("Build error:"), err)
			continue
		}
		fmt.Fprintf(out, "Request:\n  %s\n", req)
		release()
	}

	return nil
}
