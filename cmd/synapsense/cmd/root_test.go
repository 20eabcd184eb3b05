package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/pkg/version"
)

const testProjectConfig = `paths:
  data_root: data
  logs_root: logs
logging:
  stream_only: true
performance:
  workers: 2
  watch_debounce: 50ms
`

// newTestProject creates a project directory with an isolated user config.
func newTestProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapsense.yaml"), []byte(testProjectConfig), 0o644))
	return root
}

// runCmd executes the CLI against root and returns what it wrote to stdout.
// Console logging goes to a separate buffer.
func runCmd(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	return runCmdContext(t, context.Background(), root, args...)
}

func runCmdContext(t *testing.T, ctx context.Context, root string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append([]string{"--root", root, "--no-color"}, args...))
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: usage lists the command groups
	require.NoError(t, err)
	out := buf.String()
	for _, sub := range []string{"read", "convert", "process", "dataset", "logs", "config", "doctor", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())

	assert.Equal(t, "synapsense version "+version.Version+"\n", buf.String())
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"frobnicate"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRootCmd_InvalidRoot(t *testing.T) {
	// Given: a project directory that does not exist
	missing := filepath.Join(t.TempDir(), "nope")

	// When: running a command that loads configuration
	_, err := runCmd(t, missing, "dataset", "list")

	// Then: the path is rejected
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidPath))
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	// Given: a project config with an unknown logging mode
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapsense.yaml"),
		[]byte("logging:\n  mode: verbose\n"), 0o644))

	// When: running a command
	_, err := runCmd(t, root, "dataset", "list")

	// Then: configuration validation fails
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRootCmd_WritesLogFileForMode(t *testing.T) {
	// Given: a project that logs to files
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapsense.yaml"),
		[]byte("paths:\n  logs_root: logs\n"), 0o644))

	// When: running a command in test mode with an experiment name
	_, err := runCmd(t, root, "--mode", "test", "--experiment", "cli run", "dataset", "list")
	require.NoError(t, err)

	// Then: a log file named after the experiment is created under logs/test
	matches, err := filepath.Glob(filepath.Join(root, "logs", "test", "*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, filepath.Base(matches[0]), "cli_run_test_")
}

func TestRootCmd_StreamOnlyWritesNoLogFile(t *testing.T) {
	// Given: a project that logs to the console only
	root := newTestProject(t)

	// When: running a command
	_, err := runCmd(t, root, "dataset", "list")
	require.NoError(t, err)

	// Then: no logs directory is created
	_, err = os.Stat(filepath.Join(root, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "default",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "synapsense "+version.Version))
				assert.Contains(t, out, "commit:")
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Version+"\n", out)
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"version": "`+version.Version+`"`)
				assert.Contains(t, out, `"go_version"`)
			},
		},
		{
			name: "verbose",
			args: []string{"version", "--verbose"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "platform:")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			tt.check(t, buf.String())
		})
	}
}

func TestRootCmd_Profiles(t *testing.T) {
	// Given: a project with one IMU file
	root := newTestProject(t)
	path := filepath.Join(root, "walk.csv")
	writeIMU(t, path)
	cpu := filepath.Join(root, "cpu.prof")
	heap := filepath.Join(root, "heap.prof")

	// When: reading it with profiling enabled
	_, err := runCmd(t, root, "--cpuprofile", cpu, "--memprofile", heap, "read", "-m", "imu", path)

	// Then: both profiles are written
	require.NoError(t, err)
	for _, p := range []string{cpu, heap} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
