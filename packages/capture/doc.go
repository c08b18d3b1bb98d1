// Package capture extracts values from captured HTTP responses.
//
// It supports selecting values from:
//   - Response body (gjson paths)
//   - Response headers of the final response
//   - Response status code and duration
//   - Set-Cookie lines
//
// Selected values are printed by the run command's reporters when
// --select is given.
package capture
