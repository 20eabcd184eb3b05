package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/synapsense/synapsense/configs"
	"github.com/synapsense/synapsense/internal/config"
	"github.com/synapsense/synapsense/internal/output"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user and project configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config ($XDG_CONFIG_HOME/synapsense/config.yaml)
  3. Project config (.synapsense.yaml)
  4. Environment variables (SYNAPSENSE_*)`,
		Example: `  # Create a project config in the current project
  synapsense config init

  # Create the user config
  synapsense config init --user

  # Show effective configuration
  synapsense config show`,
		Annotations: map[string]string{annotationNoSetup: "true"},
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))
	cmd.AddCommand(newConfigRestoreCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create .synapsense.yaml in the project root, or the user configuration
with --user.

With --force an existing user configuration is backed up and upgraded with
any options it is missing; your settings are kept. An existing project
configuration is overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := a.output(cmd)
			if user {
				return runConfigInitUser(out, force)
			}
			root, err := a.projectRoot()
			if err != nil {
				return err
			}
			return runConfigInitProject(out, root, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite or upgrade an existing configuration")
	cmd.Flags().BoolVar(&user, "user", false, "Create the user configuration instead of the project one")

	return cmd
}

func runConfigInitProject(out *output.Writer, root string, force bool) error {
	if existing := config.FindProjectConfig(root); existing != "" && !force {
		out.Warning("Project configuration already exists")
		out.KeyValue("Location", existing)
		out.Info("Use --force to overwrite it")
		return nil
	}

	path := filepath.Join(root, config.ProjectConfigNames[0])
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	out.Success("Created project configuration")
	out.KeyValue("Location", path)
	return nil
}

func runConfigInitUser(out *output.Writer, force bool) error {
	path := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.KeyValue("Location", path)
			out.Info("Use --force to upgrade with new defaults (preserves your settings)")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	out.Success("Created user configuration")
	out.KeyValue("Location", path)
	out.Info("Run 'synapsense config show' to verify")
	return nil
}

// runConfigUpgrade backs up the user config and fills in new defaults.
func runConfigUpgrade(out *output.Writer, path string) error {
	backup, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	existing, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("failed to load existing config: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}

	added := existing.MergeNewDefaults()
	if err := existing.WriteYAML(path); err != nil {
		return fmt.Errorf("failed to write upgraded config: %w", err)
	}

	out.Success("Configuration upgraded")
	out.KeyValue("Location", path)
	out.KeyValue("Backup", backup)
	if len(added) == 0 {
		out.Info("Your configuration is already up to date")
		return nil
	}
	out.Info("New options added with defaults:")
	for _, field := range added {
		out.Statusf("", "  - %s", field)
	}
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		Long: `Show the effective configuration after merging all sources, or a
single source with --source.`,
		Example: `  synapsense config show
  synapsense config show --json
  synapsense config show --source user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, a, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, a *app, jsonOutput bool, source string) error {
	out := a.output(cmd)

	var (
		cfg  *config.Config
		desc string
	)
	switch source {
	case "merged":
		root, err := a.projectRoot()
		if err != nil {
			return err
		}
		cfg, err = config.Load(root)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		desc = "merged (defaults + user + project + env)"

	case "user":
		path := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			out.Warning("No user configuration file found")
			out.KeyValue("Expected at", path)
			out.Info("Run 'synapsense config init --user' to create one")
			return nil
		}
		var err error
		if cfg, err = readConfigFile(path); err != nil {
			return err
		}
		desc = fmt.Sprintf("user (%s)", path)

	case "project":
		root, err := a.projectRoot()
		if err != nil {
			return err
		}
		path := config.FindProjectConfig(root)
		if path == "" {
			out.Warning("No project configuration file found")
			out.KeyValue("Expected at", filepath.Join(root, config.ProjectConfigNames[0]))
			out.Info("Run 'synapsense config init' to create one")
			return nil
		}
		if cfg, err = readConfigFile(path); err != nil {
			return err
		}
		desc = fmt.Sprintf("project (%s)", path)

	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	out.Statusf(output.TagInfo, "Configuration source: %s", desc)
	out.Newline()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

// readConfigFile parses one config file over the defaults.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func newConfigPathCmd(a *app) *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Long:  `Print the path to the user configuration file, or to the project one with --project.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				root, err := a.projectRoot()
				if err != nil {
					return err
				}
				if path = config.FindProjectConfig(root); path == "" {
					path = filepath.Join(root, config.ProjectConfigNames[0])
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Print the project config path")

	return cmd
}

func newConfigRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup]",
		Short: "List user config backups or restore one",
		Long: `Without arguments, list the user configuration backups, newest first.
With a backup path, restore it; the current configuration is backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.output(cmd)
			if len(args) == 1 {
				if err := config.RestoreUserConfig(args[0]); err != nil {
					return err
				}
				out.Successf("Restored %s", args[0])
				return nil
			}

			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				out.Info("No backups found")
				return nil
			}
			for _, b := range backups {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}
