package cmd

// Exit codes for the capis CLI. A run exits with ExitSuccess even when
// requests fail; per-file outcomes are in the report.
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitCheckFailure indicates validate or lint found problems
	ExitCheckFailure = 1

	// ExitParseError indicates a descriptor could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
