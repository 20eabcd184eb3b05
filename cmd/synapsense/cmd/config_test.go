package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsense/synapsense/configs"
	"github.com/synapsense/synapsense/internal/config"
)

func TestConfigInitCmd_Project(t *testing.T) {
	// Given: a project root without a config file
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// When: initialising it
	out, err := runCmd(t, root, "config", "init")

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")
	data, err := os.ReadFile(filepath.Join(root, ".synapsense.yaml"))
	require.NoError(t, err)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))

	// And: a second init leaves it alone
	out, err = runCmd(t, root, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestConfigInitCmd_ProjectForce(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "config", "init", "--force")

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, ".synapsense.yaml"))
	require.NoError(t, err)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))
}

func TestConfigInitCmd_UserUpgradeAndRestore(t *testing.T) {
	// Given: an old user config with one custom setting
	root := newTestProject(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	old := "logging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(old), 0o644))

	// When: a plain init runs
	out, err := runCmd(t, root, "config", "init", "--user")

	// Then: it refuses to touch the file
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// When: upgrading with --force
	out, err = runCmd(t, root, "config", "init", "--user", "--force")

	// Then: the setting survives and a backup is recorded
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration upgraded")
	cfg, err := config.LoadUserConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "warn", cfg.Logging.Level)

	out, err = runCmd(t, root, "config", "restore")
	require.NoError(t, err)
	backups := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, backups, 1)

	// When: restoring the backup
	_, err = runCmd(t, root, "config", "restore", backups[0])

	// Then: the original file content is back
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, old, string(data))
}

func TestConfigInitCmd_UserCreates(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "config", "init", "--user")

	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigRestoreCmd_NoBackups(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "config", "restore")

	require.NoError(t, err)
	assert.Contains(t, out, "No backups found")
}

func TestConfigShowCmd(t *testing.T) {
	root := newTestProject(t)

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "defaults as json",
			args: []string{"--source", "defaults", "--json"},
			check: func(t *testing.T, out string) {
				var cfg config.Config
				require.NoError(t, json.Unmarshal([]byte(out), &cfg))
				assert.Contains(t, cfg.Datasets, "IODataset")
				assert.Equal(t, "data", cfg.Paths.DataRoot)
			},
		},
		{
			name: "merged resolves paths",
			args: []string{"--json"},
			check: func(t *testing.T, out string) {
				var cfg config.Config
				require.NoError(t, json.Unmarshal([]byte(out), &cfg))
				assert.Equal(t, filepath.Join(root, "data"), cfg.Paths.DataRoot)
				assert.Equal(t, 2, cfg.Performance.Workers)
			},
		},
		{
			name: "project as yaml",
			args: []string{"--source", "project"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "Configuration source: project")
				assert.Contains(t, out, "watch_debounce: 50ms")
			},
		},
		{
			name: "missing user config",
			args: []string{"--source", "user"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "No user configuration file found")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, root, append([]string{"config", "show"}, tt.args...)...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestConfigShowCmd_InvalidSource(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "config", "show", "--source", "env")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source")
}

func TestConfigPathCmd(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath()+"\n", out)

	out, err = runCmd(t, root, "config", "path", "--project")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".synapsense.yaml")+"\n", out)
}
