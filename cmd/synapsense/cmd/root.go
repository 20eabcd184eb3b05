// Package cmd provides the CLI commands for SynapSense.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/logging"
	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/modality/codecs"
	"github.com/synapsense/synapsense/internal/profiling"
	"github.com/synapsense/synapsense/pkg/version"
)

// Command annotations read by setup.
const (
	// annotationNoSetup marks commands that run without loading configuration.
	annotationNoSetup = "synapsense/no-setup"
	// annotationConsoleLog marks commands that never open a log file.
	annotationConsoleLog = "synapsense/console-log"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	root       string
	debug      bool
	mode       string
	experiment string
	noColor    bool
	streamOnly bool
	profile    profiling.Options
}

// app is the state built in PersistentPreRunE and shared by subcommands.
type app struct {
	flags globalFlags
	root  string
	cfg   *config.Config
	reg   *modality.Registry
	logs  *logging.Manager
	io    *modality.CachedIO
	prof  *profiling.Session
}

// NewRootCmd creates the root command for the synapsense CLI.
func NewRootCmd() *cobra.Command {
	a := &app{logs: logging.NewManager()}

	cmd := &cobra.Command{
		Use:   "synapsense",
		Short: "Multi-modality sensor data toolkit",
		Long: `SynapSense reads, writes and processes event camera (DVS), LiDAR,
IMU and RGB recordings through one data bundle, and manages the
datasets they come from.

Run 'synapsense doctor' to check that the environment is ready.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("synapsense version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.root, "root", "C", "", "Project directory (default: discovered from the working directory)")
	pf.BoolVar(&a.flags.debug, "debug", false, "Use debug logging mode")
	pf.StringVar(&a.flags.mode, "mode", "", "Logging mode: development, debug, experiment, benchmark, test")
	pf.StringVar(&a.flags.experiment, "experiment", "", "Experiment name embedded in log file names")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&a.flags.streamOnly, "stream-only", false, "Log to the console only")
	pf.StringVar(&a.flags.profile.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	pf.StringVar(&a.flags.profile.Heap, "memprofile", "", "Write a heap profile to this file on exit")
	pf.StringVar(&a.flags.profile.Trace, "trace", "", "Write an execution trace to this file")
	for _, name := range []string{"cpuprofile", "memprofile", "trace"} {
		_ = pf.MarkHidden(name)
	}

	cmd.PersistentPreRunE = a.setup
	cmd.PersistentPostRunE = a.teardown

	cmd.AddCommand(newReadCmd(a))
	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newProcessCmd(a))
	cmd.AddCommand(newDatasetCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		debug, _ := root.PersistentFlags().GetBool("debug")
		_, _ = fmt.Fprintln(root.ErrOrStderr(), serrors.FormatForUser(err, debug))
	}
	return err
}

// setup loads configuration, starts logging and configures the codecs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if skipSetup(cmd) {
		return nil
	}

	root, err := a.projectRoot()
	if err != nil {
		return err
	}
	a.root = root

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if _, err := a.logs.Init(a.loggingOptions(cmd)); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	reg, err := codecs.NewRegistry(cfg)
	if err != nil {
		return err
	}
	a.reg = reg
	a.io = modality.NewCachedIO(modality.NewIO(reg, a.logger()), cfg.Performance.CacheSize)

	if a.flags.profile.Enabled() {
		if a.prof, err = profiling.Start(a.flags.profile); err != nil {
			return err
		}
	}

	a.logger().Debug("Command started",
		slog.String("command", cmd.CommandPath()),
		slog.String("root", root),
		slog.String("version", version.Version))
	return nil
}

// teardown flushes profiles and closes the log file.
func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if err := a.prof.Stop(); err != nil {
		a.logger().Warn("Failed to write profiles", slog.String("error", err.Error()))
	}
	if !a.logs.Initialized() {
		return nil
	}
	return a.logs.Shutdown()
}

func (a *app) projectRoot() (string, error) {
	if a.flags.root != "" {
		info, err := os.Stat(a.flags.root)
		if err != nil || !info.IsDir() {
			return "", serrors.New(serrors.ErrCodeInvalidPath, "project directory not found: "+a.flags.root, err)
		}
		return a.flags.root, nil
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return os.Getwd()
	}
	return root, nil
}

// loggingOptions applies the global flags on top of the logging section.
func (a *app) loggingOptions(cmd *cobra.Command) logging.Options {
	lc := a.cfg.Logging
	opts := logging.Options{
		Name:         lc.Name,
		Experiment:   lc.Experiment,
		Mode:         lc.Mode,
		Level:        lc.Level,
		LogsRoot:     a.cfg.Paths.LogsRoot,
		FileName:     lc.FileName,
		StreamOnly:   lc.StreamOnly || a.flags.streamOnly || hasAnnotation(cmd, annotationConsoleLog),
		MaxSizeMB:    lc.MaxSizeMB,
		BackupCounts: lc.BackupCounts,
		Console:      cmd.ErrOrStderr(),
	}
	if a.flags.debug {
		opts.Mode = string(logging.ModeDebug)
		opts.Level = "debug"
	}
	if a.flags.mode != "" {
		opts.Mode = a.flags.mode
	}
	if a.flags.experiment != "" {
		opts.Experiment = a.flags.experiment
	}
	return opts
}

func (a *app) logger() *slog.Logger {
	return a.logs.Logger()
}

// workers returns the configured concurrency, at least one.
func (a *app) workers() int {
	if a.cfg != nil && a.cfg.Performance.Workers > 0 {
		return a.cfg.Performance.Workers
	}
	return runtime.NumCPU()
}

func skipSetup(cmd *cobra.Command) bool {
	return hasAnnotation(cmd, annotationNoSetup)
}

// hasAnnotation reports whether cmd or one of its parents sets key.
func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[key] == "true" {
			return true
		}
	}
	return false
}
