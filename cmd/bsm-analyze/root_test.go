package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/lcio"

	"github.com/stackvity/bsm-analyze/internal/testutil"
)

// executeCommand is a helper function to execute cobra command and capture output
func executeCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())

	return stdoutBuf.String(), stderrBuf.String(), err
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestRootCmdHelp_AllFlagsPresent(t *testing.T) {
	root := newRootCmd()
	stdout, stderr, err := executeCommand(root, "--help")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "bsm-analyze [flags] <file|dir>...")

	visit := func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		assert.Contains(t, stdout, "--"+f.Name, "Help output should contain flag --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "Help output should contain shorthand -%s", f.Shorthand)
		}
	}
	root.Flags().VisitAll(visit)
	root.PersistentFlags().VisitAll(visit)
}

func TestRootCmd_NoArgsPrintsUsage(t *testing.T) {
	stdout, _, err := executeCommand(newRootCmd())
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage:")
	assert.Equal(t, 0, execute(context.Background(), []string{"--help"}))
}

func TestRootCmdVersion(t *testing.T) {
	originalVersion, originalCommit, originalDate := version, commit, date
	version, commit, date = "test-1.2.3", "testcommit123", "2024-01-01T10:00:00Z"
	defer func() {
		version, commit, date = originalVersion, originalCommit, originalDate
	}()

	stdout, stderr, err := executeCommand(newRootCmd(), "--version")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, "bsm-analyze version test-1.2.3 (commit: testcommit123, built: 2024-01-01T10:00:00Z)\n", stdout)
}

func TestRootCmd_Run(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	for i, n := range []int{2, 3, 4} {
		events := make([][]lcio.McParticle, n)
		for j := range events {
			events[j] = []lcio.McParticle{testutil.Particle(float64(i+1), float64(j), 1, 1)}
		}
		testutil.WriteLCIOFile(t, filepath.Join(dir, "run"+string(rune('0'+i))+".slcio"), events)
	}

	stdout, stderr, err := executeCommand(newRootCmd(), "--no-keyboard", "-j", "2", dir)
	require.NoError(t, err)
	assert.Equal(t, "events: 9\n", stdout)
	assert.Contains(t, stderr, "3 completed")
}

func TestRootCmd_Errors(t *testing.T) {
	isolateConfig(t)
	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{"unknown flag", []string{"--unknown-flag", "a.slcio"}, "unknown flag: --unknown-flag"},
		{"invalid int", []string{"--concurrency", "abc", "a.slcio"}, `invalid argument "abc" for "-j, --concurrency" flag`},
		{"invalid analyzer", []string{"--no-keyboard", "-a", "fft", "a.slcio"}, "invalid value 'fft' for key 'analyzer'"},
		{"missing input", []string{"--no-keyboard", filepath.Join(t.TempDir(), "nope")}, "input path not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := executeCommand(newRootCmd(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, stderr, tt.errorMsg)
		})
	}
	assert.Equal(t, 1, execute(context.Background(), []string{"--no-keyboard", "-a", "fft", "a.slcio"}))
}
