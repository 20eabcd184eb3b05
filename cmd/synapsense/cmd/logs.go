package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/synapsense/synapsense/internal/files"
	"github.com/synapsense/synapsense/internal/logging"
	"github.com/synapsense/synapsense/internal/ui"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View and clean log files",
		Long: `Logs are written as JSON lines to <logs_root>/<mode>/, one file per run.
Development logs go directly to <logs_root>.`,
	}

	cmd.AddCommand(newLogsViewCmd(a))
	cmd.AddCommand(newLogsListCmd(a))
	cmd.AddCommand(newLogsCleanCmd(a))

	return cmd
}

func newLogsViewCmd(a *app) *cobra.Command {
	var (
		lines   int
		level   string
		pattern string
		mode    string
		follow  bool
		runID   bool
	)

	cmd := &cobra.Command{
		Use:         "view [file]",
		Short:       "Show the newest log file",
		Annotations: map[string]string{annotationConsoleLog: "true"},
		Example: `  # Last 50 lines of the newest log
  synapsense logs view

  # Only warnings and errors from experiment runs, then follow
  synapsense logs view --mode experiment --level warn -f`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := logging.FindLogFile(optionalArg(args, 0), a.cfg.Paths.LogsRoot, mode)
			if err != nil {
				return err
			}

			vcfg := logging.ViewerConfig{
				Level:     level,
				NoColor:   a.flags.noColor || !ui.ColorEnabled(cmd.OutOrStdout()),
				ShowRunID: runID,
			}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				vcfg.Pattern = re
			}

			v := logging.NewViewer(vcfg, cmd.OutOrStdout())
			entries, err := v.Tail(path, lines)
			if err != nil {
				return err
			}
			v.Print(entries)
			if !follow {
				return nil
			}

			ch := make(chan logging.LogEntry)
			errCh := make(chan error, 1)
			go func() {
				errCh <- v.Follow(cmd.Context(), path, ch)
				close(ch)
			}()
			for entry := range ch {
				v.Print([]logging.LogEntry{entry})
			}
			return <-errCh
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this regular expression")
	cmd.Flags().StringVar(&mode, "mode", "", "Look for logs of this logging mode")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new entries")
	cmd.Flags().BoolVar(&runID, "run-id", false, "Prefix lines with the run id")

	return cmd
}

func newLogsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "List log files, newest first",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConsoleLog: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := logging.ListLogFiles(a.cfg.Paths.LogsRoot)
			if err != nil {
				return err
			}
			out := a.output(cmd)
			if len(paths) == 0 {
				out.Infof("No log files under %s", a.cfg.Paths.LogsRoot)
				return nil
			}
			active := a.logs.ActiveFile()
			for _, p := range paths {
				size, _ := files.FileSize(p)
				line := fmt.Sprintf("%s  %s", p, files.HumanReadableSize(float64(size), 2))
				if p == active {
					line += "  (active)"
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newLogsCleanCmd(a *app) *cobra.Command {
	var (
		mode     string
		retain   int
		pattern  string
		keywords []string
		compress bool
		shutdown bool
	)

	cmd := &cobra.Command{
		Use:   "clean [dir]",
		Short: "Delete or compress old files",
		Long: `Clean a directory, by default the logs root.

Modes:
  full           delete every file except the active log, remove empty directories
  files_only     delete files matching --pattern and all --keyword values
  retain_last_n  keep the newest --retain files per directory; older ones are
                 deleted, or zipped into compressed/ with --compress

Defaults come from the cleanup section of the configuration.`,
		Example: `  synapsense logs clean --mode retain_last_n --retain 3 --compress
  synapsense logs clean --mode files_only --pattern '*.log' --keyword benchmark`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := optionalArg(args, 0)
			if dir == "" {
				dir = a.cfg.Paths.LogsRoot
			}

			opts := files.OptionsFromConfig(dir, a.cfg.Cleanup, a.logs)
			flags := cmd.Flags()
			if flags.Changed("mode") {
				opts.Mode = mode
			}
			if flags.Changed("retain") {
				opts.RetainLastN = retain
			}
			if flags.Changed("pattern") {
				opts.Pattern = pattern
			}
			if flags.Changed("keyword") {
				opts.Keywords = keywords
			}
			if flags.Changed("compress") {
				opts.Compress = compress
			}
			if flags.Changed("shutdown-logger") {
				opts.RequiresLoggerShutdown = shutdown
			}

			report, err := files.CleanDirectory(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printCleanupReport(a, cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Cleanup mode: full, files_only, retain_last_n")
	cmd.Flags().IntVar(&retain, "retain", 0, "Files kept per directory in retain_last_n mode")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob matched against file names")
	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "Keywords that must all appear in a file name")
	cmd.Flags().BoolVar(&compress, "compress", false, "Compress instead of delete in retain_last_n mode")
	cmd.Flags().BoolVar(&shutdown, "shutdown-logger", false, "Release the active log file while cleaning")

	return cmd
}

func printCleanupReport(a *app, cmd *cobra.Command, r *files.CleanupReport) {
	out := a.output(cmd)
	if r.Missing {
		out.Warningf("Directory %s does not exist, nothing to clean", r.Dir)
		return
	}
	out.Successf("Cleaned %s (%s)", r.Dir, r.Mode)
	out.KeyValue("Deleted", fmt.Sprint(len(r.Deleted)))
	if len(r.Compressed) > 0 {
		out.KeyValue("Compressed", fmt.Sprint(len(r.Compressed)))
	}
	if len(r.Skipped) > 0 {
		out.KeyValue("Skipped", strings.Join(r.Skipped, ", "))
	}
	out.KeyValue("Before", files.HumanReadableSize(float64(r.InitialSize), 2))
	out.KeyValue("After", files.HumanReadableSize(float64(r.FinalSize), 2))
	out.KeyValue("Freed", files.HumanReadableSize(float64(r.Freed()), 2))
}
