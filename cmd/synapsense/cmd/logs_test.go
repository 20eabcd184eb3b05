package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-01-02T10:11:12.345Z","level":"INFO","msg":"Loaded file","run_id":"0123456789ab","path":"a.csv"}
{"time":"2026-01-02T10:11:13.000Z","level":"WARN","msg":"Slow read","run_id":"0123456789ab","ms":120}
{"time":"2026-01-02T10:11:14.000Z","level":"ERROR","msg":"Write failed","run_id":"0123456789ab"}
`

func writeLog(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestLogsViewCmd_ExplicitFile(t *testing.T) {
	// Given: a JSON log file
	root := newTestProject(t)
	path := filepath.Join(root, "run.log")
	writeLog(t, path, time.Now())

	// When: viewing warnings and above
	out, err := runCmd(t, root, "logs", "view", "--level", "warn", path)

	// Then: only the filtered entries are printed
	require.NoError(t, err)
	assert.NotContains(t, out, "Loaded file")
	assert.Contains(t, out, "Slow read ms=120")
	assert.Contains(t, out, "Write failed")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestLogsViewCmd_GrepAndRunID(t *testing.T) {
	root := newTestProject(t)
	path := filepath.Join(root, "run.log")
	writeLog(t, path, time.Now())

	out, err := runCmd(t, root, "logs", "view", "--grep", "a\\.csv", "--run-id", path)

	require.NoError(t, err)
	assert.Contains(t, out, "[01234567] Loaded file")
	assert.NotContains(t, out, "Slow read")
}

func TestLogsViewCmd_InvalidPattern(t *testing.T) {
	root := newTestProject(t)
	path := filepath.Join(root, "run.log")
	writeLog(t, path, time.Now())

	_, err := runCmd(t, root, "logs", "view", "--grep", "(", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --grep pattern")
}

func TestLogsListCmd(t *testing.T) {
	// Given: two logs under the logs root with different ages
	root := newTestProject(t)
	older := filepath.Join(root, "logs", "debug", "old.log")
	newer := filepath.Join(root, "logs", "debug", "new.log")
	writeLog(t, older, time.Now().Add(-time.Hour))
	writeLog(t, newer, time.Now())

	// When: listing them
	out, err := runCmd(t, root, "logs", "list")

	// Then: the newest comes first
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], newer))
	assert.True(t, strings.HasPrefix(lines[1], older))
}

func TestLogsListCmd_Empty(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "logs", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No log files")
}

func TestLogsCleanCmd_RetainLastN(t *testing.T) {
	// Given: five logs of increasing age
	root := newTestProject(t)
	dir := filepath.Join(root, "logs", "debug")
	now := time.Now()
	for i := range 5 {
		writeLog(t, filepath.Join(dir, "run"+string(rune('a'+i))+".log"), now.Add(-time.Duration(i)*time.Minute))
	}

	// When: keeping the newest two
	out, err := runCmd(t, root, "logs", "clean", "--mode", "retain_last_n", "--retain", "2")

	// Then: only the two newest remain
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaned")
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range left {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"runa.log", "runb.log"}, names)
}

func TestLogsCleanCmd_FilesOnly(t *testing.T) {
	// Given: logs from two kinds of runs in an explicit directory
	root := newTestProject(t)
	dir := filepath.Join(root, "scratch")
	writeLog(t, filepath.Join(dir, "benchmark_1.log"), time.Now())
	writeLog(t, filepath.Join(dir, "debug_1.log"), time.Now())

	// When: deleting only benchmark logs
	_, err := runCmd(t, root, "logs", "clean", "--mode", "files_only", "--pattern", "*.log", "--keyword", "benchmark", dir)

	// Then: the other log survives
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "benchmark_1.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "debug_1.log"))
	assert.NoError(t, err)
}

func TestLogsCleanCmd_MissingDir(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "logs", "clean", filepath.Join(root, "nope"))

	require.NoError(t, err)
	assert.Contains(t, out, "does not exist")
}

func TestLogsCleanCmd_InvalidMode(t *testing.T) {
	root := newTestProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0o755))

	_, err := runCmd(t, root, "logs", "clean", "--mode", "everything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cleanup mode")
}
