package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/capis/packages/db"
)

// executeCommand runs the root command with args and fresh flag values
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func newTargetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":7}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func descriptorFor(host, path string) string {
	return fmt.Sprintf("method: GET\nhost: %s\npath: %s\nsecure: false\n", host, path)
}

func tapLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "ok ") || strings.HasPrefix(line, "not ok ") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRunCommand_FailuresExitZero(t *testing.T) {
	chdirT(t, t.TempDir())
	dir := t.TempDir()

	srv := newTargetServer(t)
	host := strings.TrimPrefix(srv.URL, "http://")

	down := httptest.NewServer(http.NotFoundHandler())
	downHost := strings.TrimPrefix(down.URL, "http://")
	down.Close()

	files := []string{
		writeFile(t, dir, "good.yaml", descriptorFor(host, "/ok")),
		writeFile(t, dir, "status.yaml", descriptorFor(host, "/boom")),
		writeFile(t, dir, "down.yaml", descriptorFor(downHost, "/ok")),
		writeFile(t, dir, "bad.yaml", "just a scalar\n"),
		filepath.Join(dir, "missing.yaml"),
	}

	out, err := executeCommand(t, append([]string{"run", "-o", "tap"}, files...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "1..5")
	lines := tapLines(out)
	require.Len(t, lines, 5, out)
	assert.Equal(t, fmt.Sprintf("ok 1 - good.yaml - GET http://%s/ok", host), lines[0])
	assert.Equal(t, fmt.Sprintf("not ok 2 - status.yaml - GET http://%s/boom", host), lines[1])
	assert.Equal(t, fmt.Sprintf("not ok 3 - down.yaml - GET http://%s/ok", downHost), lines[2])
	assert.Equal(t, "not ok 4 - bad.yaml", lines[3])
	assert.Equal(t, "not ok 5 - missing.yaml", lines[4])
	assert.Contains(t, out, "status: 500")
	assert.Contains(t, out, "severity: fail")
	assert.Contains(t, out, "severity: error")
}

func TestRunCommand_DryRunWithMissingFile(t *testing.T) {
	chdirT(t, t.TempDir())
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", validDescriptor)
	missing := filepath.Join(dir, "missing.yaml")

	out, err := executeCommand(t, "run", "--dry-run", "-o", "tap", good, missing)
	require.NoError(t, err)

	lines := tapLines(out)
	require.Len(t, lines, 2, out)
	assert.Equal(t, "ok 1 - good.yaml - GET https://example.com/items # SKIP dry run", lines[0])
	assert.Equal(t, "not ok 2 - missing.yaml", lines[1])
}

func TestRunCommand_NoDescriptors(t *testing.T) {
	chdirT(t, t.TempDir())

	_, err := executeCommand(t, "run", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestHistoryCommand(t *testing.T) {
	chdirT(t, t.TempDir())
	dir := t.TempDir()
	store := filepath.Join(dir, "history.db")

	srv := newTargetServer(t)
	host := strings.TrimPrefix(srv.URL, "http://")
	good := writeFile(t, dir, "good.yaml", descriptorFor(host, "/ok"))
	bad := writeFile(t, dir, "bad.yaml", "- a\n")

	_, err := executeCommand(t, "run", "-o", "tap", "--history", store, good, bad)
	require.NoError(t, err)

	h, err := db.OpenHistory(context.Background(), store)
	require.NoError(t, err)
	runs, err := h.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.Len(t, runs, 1)
	runID := runs[0].ID

	out, err := executeCommand(t, "history", "--history", store)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, runID)

	out, err = executeCommand(t, "history", "--history", store, runID)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+runID)
	assert.Contains(t, out, fmt.Sprintf("✓ good.yaml GET http://%s/ok (200,", host))
	assert.Contains(t, out, "✗ bad.yaml (parse:")

	out, err = executeCommand(t, "history", "--history", store, "no-such-run")
	require.NoError(t, err)
	assert.Contains(t, out, "No requests recorded for run no-such-run")
}

func TestHistoryCommand_NoStore(t *testing.T) {
	chdirT(t, t.TempDir())

	_, err := executeCommand(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}
