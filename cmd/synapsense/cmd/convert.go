package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/scanner"
	"github.com/synapsense/synapsense/internal/ui"
)

type convertOptions struct {
	to        string
	outDir    string
	forced    string
	overwrite bool
}

type convertJob struct {
	src string
	dst string
	m   modality.Modality
}

func newConvertCmd(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert sensor files to another format of the same modality",
		Long: `Convert sensor files to another file format of the same modality.

Directories are scanned recursively and every file of a known modality is
converted, keeping its path relative to the directory under --out. Files are processed concurrently (performance.workers); a file
that fails is reported and the rest continue.`,
		Example: `  # Convert event recordings to AEDAT4
  synapsense convert --to .aedat4 --out out/ events/*.csv

  # Convert every point cloud in a directory to PLY
  synapsense convert --modality lidar --to ply --out ply/ scans/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, a, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.to, "to", "t", "", "Target extension, e.g. .ply or aedat4 (required)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&opts.forced, "modality", "m", "", "Only convert files of this modality and read them as it")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing output files")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runConvert(cmd *cobra.Command, a *app, args []string, opts convertOptions) error {
	ctx := cmd.Context()
	start := time.Now()

	ext := strings.ToLower(opts.to)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var forced modality.Modality
	if opts.forced != "" {
		m, err := modality.Parse(opts.forced)
		if err != nil {
			return err
		}
		forced = m
	}

	jobs, err := a.convertJobs(ctx, args, forced, ext, opts.outDir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return serrors.New(serrors.ErrCodeInvalidInput, "no convertible files found", nil).
			WithSuggestion("check the input paths and --modality")
	}
	if err := modality.EnsureDir(opts.outDir); err != nil {
		return err
	}

	renderer := ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithNoColor(a.flags.noColor)))
	var done, bytes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for _, job := range jobs {
		g.Go(func() error {
			n, err := a.convertOne(gctx, job, forced != "", opts.overwrite)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				renderer.AddError(ui.ErrorEvent{File: job.src, Err: err})
				return nil
			}
			bytes.Add(n)
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageConverting,
				Current:     int(done.Add(1)),
				Total:       len(jobs),
				CurrentFile: job.dst,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := len(renderer.Errors())
	renderer.Complete(ui.CompletionStats{
		Action:   "converted",
		Files:    int(done.Load()),
		Bytes:    bytes.Load(),
		Duration: time.Since(start),
		Errors:   failed,
	})
	if failed > 0 {
		return serrors.Newf(serrors.ErrCodeWriteFailed, "%d of %d files failed to convert", failed, len(jobs))
	}
	return nil
}

// convertJobs expands args into one job per input file. The target
// extension must be writable by the modality of each file. Files found in a
// directory keep their path relative to it under outDir; two inputs that
// would land on the same output are rejected before anything is written.
func (a *app) convertJobs(ctx context.Context, args []string, forced modality.Modality, ext, outDir string) ([]convertJob, error) {
	var jobs []convertJob
	sources := make(map[string]string)
	add := func(src, rel string, m modality.Modality) error {
		exts, err := a.reg.SupportedExtensions(m, modality.OpWrite)
		if err != nil {
			return err
		}
		if !modality.ValidateExtension("x"+ext, exts) {
			return serrors.New(serrors.ErrCodeUnsupportedExtension,
				fmt.Sprintf("%s cannot write %s files", strings.ToUpper(string(m)), ext), nil).
				WithDetail("path", src).
				WithSuggestion("supported: " + strings.Join(exts, ", "))
		}
		dst := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+ext)
		if prev, ok := sources[dst]; ok {
			return serrors.New(serrors.ErrCodeWriteFailed, "two inputs convert to "+dst, nil).
				WithDetail("first", prev).
				WithDetail("second", src).
				WithSuggestion("convert them into separate --out directories")
		}
		sources[dst] = src
		jobs = append(jobs, convertJob{src: src, dst: dst, m: m})
		return nil
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "input not found: "+arg, err)
		}
		if !info.IsDir() {
			m := forced
			if m == "" {
				resolved, ok := a.reg.ResolveModality(arg, modality.OpRead)
				if !ok {
					return nil, serrors.New(serrors.ErrCodeUnsupportedExtension, "unsupported file extension: "+arg, nil)
				}
				m = resolved
			}
			if err := add(arg, filepath.Base(arg), m); err != nil {
				return nil, err
			}
			continue
		}

		opts := &scanner.ScanOptions{Workers: a.workers()}
		if forced != "" {
			opts.Modalities = []modality.Modality{forced}
			opts.DirModalities = map[string]modality.Modality{"": forced}
		}
		results, err := scanner.New(a.reg).Scan(ctx, arg, opts)
		if err != nil {
			return nil, err
		}
		files, err := scanner.Collect(results)
		if err != nil {
			return nil, err
		}
		// scan order is not stable
		slices.SortFunc(files, func(x, y *scanner.FileInfo) int { return strings.Compare(x.Path, y.Path) })
		for _, f := range files {
			if err := add(f.AbsPath, filepath.FromSlash(f.Path), f.Modality); err != nil {
				return nil, err
			}
		}
	}
	return jobs, nil
}

// convertOne reads and writes a single file and returns the bytes written.
func (a *app) convertOne(ctx context.Context, job convertJob, forced, overwrite bool) (int64, error) {
	if !overwrite {
		if _, err := os.Stat(job.dst); err == nil {
			return 0, serrors.New(serrors.ErrCodeWriteFailed, "output exists: "+job.dst, nil).
				WithSuggestion("use --overwrite to replace it")
		}
	}

	var (
		b   *modality.Bundle
		err error
	)
	if forced {
		b, err = a.io.ReadWithModality(ctx, job.m, job.src)
	} else {
		b, err = a.io.Read(ctx, job.src)
	}
	if err != nil {
		return 0, err
	}
	if err := a.io.Write(ctx, job.m, b, job.dst); err != nil {
		return 0, err
	}
	info, err := os.Stat(job.dst)
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeWriteFailed, "cannot stat "+job.dst, err)
	}
	return info.Size(), nil
}
