package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/synapsense/synapsense/internal/dataset"
	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/output"
	"github.com/synapsense/synapsense/internal/preflight"
	"github.com/synapsense/synapsense/internal/scanner"
	"github.com/synapsense/synapsense/internal/store"
	"github.com/synapsense/synapsense/internal/ui"
	"github.com/synapsense/synapsense/internal/watcher"
)

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dataset",
		Aliases: []string{"datasets", "ds"},
		Short:   "Manage the dataset catalog",
		Long: `Inspect, download and index the datasets configured under paths.data_root.

Datasets are defined in the datasets section of the configuration. The
built-in catalog holds DSEC, KITTI, nuScenes, MVSEC and IODataset.`,
	}

	cmd.AddCommand(newDatasetListCmd(a))
	cmd.AddCommand(newDatasetPathCmd(a))
	cmd.AddCommand(newDatasetValidateCmd(a))
	cmd.AddCommand(newDatasetFilesCmd(a))
	cmd.AddCommand(newDatasetDownloadCmd(a))
	cmd.AddCommand(newDatasetIndexCmd(a))
	cmd.AddCommand(newDatasetWatchCmd(a))
	cmd.AddCommand(newDatasetStatsCmd(a))

	return cmd
}

func (a *app) catalog() *dataset.Catalog {
	return dataset.New(a.cfg,
		dataset.WithLogger(a.logger()),
		dataset.WithSpaceCheck(preflight.EnsureSpace))
}

func (a *app) styles(cmd *cobra.Command) ui.Styles {
	return ui.GetStyles(a.flags.noColor || !ui.ColorEnabled(cmd.OutOrStdout()))
}

func newDatasetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.catalog().Show(cmd.OutOrStdout(), a.styles(cmd))
		},
	}
}

func newDatasetPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path <dataset> [modality]",
		Short: "Print the directory of a dataset or one of its modalities",
		Example: `  synapsense dataset path KITTI
  synapsense dataset path IODataset imu`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.catalog().Path(args[0], optionalArg(args, 1))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newDatasetValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dataset> [modality]",
		Short: "Check that a dataset directory exists",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, mod := args[0], optionalArg(args, 1)
			cat := a.catalog()
			path, err := cat.Path(name, mod)
			if err != nil {
				return err
			}
			out := a.output(cmd)
			if !cat.Validate(name, mod) {
				out.Errorf("Dataset path does not exist: %s", path)
				return serrors.New(serrors.ErrCodeFileNotFound, "dataset path does not exist: "+path, nil).
					WithSuggestion("run 'synapsense dataset download " + name + "'")
			}
			out.Successf("Dataset path exists: %s", path)
			return nil
		},
	}
}

func newDatasetFilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files <dataset> [modality]",
		Short: "Show the file tree of a dataset",
		Long: `Show the directory tree of a dataset. Files in each directory are
grouped by extension with a short preview of their names.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := a.catalog().ListFiles(args[0], optionalArg(args, 1))
			if err != nil {
				return err
			}
			return tree.Render(cmd.OutOrStdout(), a.styles(cmd))
		},
	}
}

func newDatasetDownloadCmd(a *app) *cobra.Command {
	var opts dataset.DownloadOptions
	var noExtract bool

	cmd := &cobra.Command{
		Use:   "download <dataset>",
		Short: "Download a dataset archive",
		Long: `Download the dataset archive to <data_root>/<root>.zip and extract it.

Transient network failures are retried with exponential backoff. A lock
file serialises concurrent downloads of the same dataset.`,
		Example: `  synapsense dataset download IODataset
  synapsense dataset download KITTI --url https://example.org/kitti.zip --overwrite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.output(cmd)
			opts.Extract = !noExtract
			opts.Progress = func(done, total int64) { out.ByteProgress(done, total) }

			res, err := a.catalog().Download(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if res.Skipped {
				out.Infof("Dataset already present at %s (use --overwrite to download again)", res.Dir)
				return nil
			}
			out.ProgressDone()
			out.Successf("Downloaded %s (%s)", res.Archive, ui.FormatBytes(res.Bytes))
			if len(res.Extracted) > 0 {
				out.Successf("Extracted %d files into %s", len(res.Extracted), res.Dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "Download from this URL instead of the catalog URL")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Download even if the dataset exists")
	cmd.Flags().BoolVar(&noExtract, "no-extract", false, "Keep the archive without extracting it")

	return cmd
}

func (a *app) indexOptions(exclude []string, out *output.Writer) dataset.IndexOptions {
	opts := dataset.IndexOptions{
		Registry:        a.reg,
		Workers:         a.workers(),
		ExcludePatterns: exclude,
	}
	if out != nil {
		opts.Progress = func(seen, matched int) {
			out.Statusf(output.TagInfo, "scanned %d files, %d sensor files", seen, matched)
		}
	}
	return opts
}

func newDatasetIndexCmd(a *app) *cobra.Command {
	var (
		exclude []string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "index <dataset>",
		Short: "Record the sensor files of a dataset in its manifest",
		Long: `Scan a dataset and record every file of a known modality in
<dataset>/.synapsense/manifest.db. Unchanged files are skipped and rows of
deleted files are pruned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.output(cmd)
			var progress *output.Writer
			if !quiet {
				progress = out
			}
			res, err := a.catalog().Index(cmd.Context(), args[0], a.indexOptions(exclude, progress))
			if err != nil {
				return err
			}
			out.Successf("Indexed %s in %s", res.Dir, res.Duration.Round(time.Millisecond))
			out.KeyValue("Files", fmt.Sprint(res.Files))
			out.KeyValue("Updated", fmt.Sprint(res.Indexed))
			out.KeyValue("Unchanged", fmt.Sprint(res.Unchanged))
			out.KeyValue("Pruned", fmt.Sprint(res.Pruned))
			out.KeyValue("Manifest", res.Manifest)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Extra exclusion patterns, e.g. '**/raw' or '*.bak'")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print scan progress")

	return cmd
}

func newDatasetWatchCmd(a *app) *cobra.Command {
	var (
		exclude     []string
		polling     bool
		skipInitial bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dataset>",
		Short: "Keep a dataset manifest in sync with the filesystem",
		Long: `Index the dataset, then watch it and apply file changes to the
manifest until interrupted. Events are coalesced for
performance.watch_debounce before they are applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetWatch(cmd, a, args[0], exclude, polling, skipInitial)
		},
	}

	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Extra exclusion patterns")
	cmd.Flags().BoolVar(&polling, "poll", false, "Poll the filesystem instead of using native events")
	cmd.Flags().BoolVar(&skipInitial, "no-index", false, "Skip the initial full index")

	return cmd
}

func runDatasetWatch(cmd *cobra.Command, a *app, name string, exclude []string, polling, skipInitial bool) error {
	ctx := cmd.Context()
	out := a.output(cmd)
	cat := a.catalog()
	logger := a.logger()

	if !skipInitial {
		res, err := cat.Index(ctx, name, a.indexOptions(exclude, nil))
		if err != nil {
			return err
		}
		out.Successf("Indexed %d files (%d updated, %d pruned)", res.Files, res.Indexed, res.Pruned)
	}

	scanOpts, err := cat.ScanOptions(name, a.indexOptions(exclude, nil))
	if err != nil {
		return err
	}
	m, dir, err := cat.OpenManifest(name)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	wopts := watcher.DefaultOptions()
	wopts.IgnorePatterns = exclude
	wopts.Ignore = scanOpts.Ignore
	wopts.ForcePolling = polling
	if d := a.cfg.Performance.WatchDebounce; d != "" {
		window, err := time.ParseDuration(d)
		if err != nil {
			return serrors.New(serrors.ErrCodeConfigInvalid, "invalid performance.watch_debounce: "+d, err)
		}
		wopts.DebounceWindow = window
	}

	w, err := watcher.NewHybridWatcher(wopts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	applier := watcher.NewApplier(m, scanner.New(a.reg), dir, scanOpts)

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, dir) }()

	out.Infof("Watching %s (Ctrl+C to stop)", dir)
	for {
		select {
		case <-ctx.Done():
			out.Info("Stopped watching")
			return nil
		case err := <-startErr:
			if err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			st, err := applier.Apply(ctx, batch)
			if err != nil {
				logger.Error("Failed to apply file events", slog.String("error", err.Error()))
				out.Errorf("Manifest update failed: %v", err)
				continue
			}
			if st.ConfigChanged {
				out.Warning("Configuration changed; restart the watcher to apply it")
			}
			if st.Upserted > 0 || st.Deleted > 0 {
				out.Statusf(output.TagOK, "%d updated, %d removed", st.Upserted, st.Deleted)
			}
		}
	}
}

func newDatasetStatsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats <dataset>",
		Short: "Show manifest statistics for an indexed dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cat := a.catalog()
			st, manifest, err := cat.Stats(cmd.Context(), name)
			if err != nil {
				return err
			}
			root, _ := cat.Path(name, "")
			info := statusInfo(name, root, manifest, st)

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), a.flags.noColor || !ui.ColorEnabled(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func statusInfo(name, root, manifest string, st *store.Stats) ui.StatusInfo {
	info := ui.StatusInfo{
		Dataset:      name,
		Root:         root,
		ManifestPath: manifest,
		TotalFiles:   st.Files,
		TotalBytes:   st.Bytes,
		LastIndexed:  st.LastIndexed,
	}
	if fi, err := os.Stat(manifest); err == nil {
		info.ManifestSize = fi.Size()
	}
	for _, m := range st.ByModality {
		info.Modalities = append(info.Modalities, ui.ModalityStat{
			Modality: strings.ToLower(m.Modality),
			Files:    m.Files,
			Bytes:    m.Bytes,
		})
	}
	return info
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
