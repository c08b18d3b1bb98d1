package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/capis/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new capis project",
	Long: `Initialize a new capis project in the given directory, or the
current one.

This creates:
  - capis.yaml     - Configuration file
  - example.yaml   - Example request descriptor

Examples:
  capis init
  capis init ./requests --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleDescriptor = `# One request per file. Keys are case-insensitive.
method: GET
host: httpbin.org
path: /get
secure: true
timeout: 10000

headers:
  - key: Accept
    value: application/json
  - key: User-Agent
    value: capis

params:
  page: 1
  limit: 20

cookies:
  - name: session
    value: example
    path: /
    secure: true
    httponly: true
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "capis.yaml")
	exampleFile := filepath.Join(dir, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Timeout = 30000
	cfg.Headers = map[string]string{"User-Agent": "capis/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleDescriptor), 0o644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ncapis project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'capis run %s' to send the example request.\n", exampleFile)

	return nil
}
