// Package cmd implements the capis CLI commands using Cobra.
//
// Available commands:
//   - run: Send the requests described in descriptor files
//   - validate: Parse descriptor files without sending anything
//   - inspect: Print the parsed descriptor
//   - lint: Check descriptor files against the descriptor schema
//   - init: Create a config file and an example descriptor
//   - version: Show capis version information
//
// run supports watch mode for development and cron schedules for
// repeated batches.
package cmd
