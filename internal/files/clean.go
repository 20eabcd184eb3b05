package files

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Cleanup modes.
const (
	ModeFull        = "full"
	ModeFilesOnly   = "files_only"
	ModeRetainLastN = "retain_last_n"
)

// CompressedDir is the sub-directory that receives archived files.
const CompressedDir = "compressed"

// LoggerControl is the part of the logging manager cleanup needs to release
// and restore the active log file.
type LoggerControl interface {
	Shutdown() error
	Reinit() (*slog.Logger, error)
	ActiveFile() string
	Initialized() bool
}

// CleanOptions selects what CleanDirectory removes.
type CleanOptions struct {
	Dir         string
	Mode        string
	RetainLastN int
	// Pattern is a filepath.Match glob applied to base names ("*" when empty).
	Pattern string
	// Keywords must all appear in a file name for it to match.
	Keywords []string
	// Compress archives old files instead of deleting them (retain_last_n only).
	Compress bool
	// RequiresLoggerShutdown releases the log file before cleaning and
	// reinitialises the logger afterwards.
	RequiresLoggerShutdown bool
	Logger                 LoggerControl
}

// OptionsFromConfig builds options for dir from the cleanup config section.
func OptionsFromConfig(dir string, cfg config.CleanupConfig, lc LoggerControl) CleanOptions {
	return CleanOptions{
		Dir:                    dir,
		Mode:                   cfg.Mode,
		RetainLastN:            cfg.RetainLastN,
		Pattern:                cfg.FilePattern,
		Keywords:               cfg.FilterKeywords,
		Compress:               cfg.Compress,
		RequiresLoggerShutdown: cfg.RequiresLoggerShutdown,
		Logger:                 lc,
	}
}

// CleanupReport summarises a CleanDirectory run.
type CleanupReport struct {
	Dir         string
	Mode        string
	InitialSize int64
	FinalSize   int64
	Deleted     []string
	Compressed  []string
	Skipped     []string
	Missing     bool
}

// Freed returns the number of bytes released.
func (r *CleanupReport) Freed() int64 {
	return r.InitialSize - r.FinalSize
}

func (o CleanOptions) matches(name string) bool {
	pattern := o.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if ok, err := filepath.Match(pattern, name); err != nil || !ok {
		return false
	}
	for _, kw := range o.Keywords {
		if !strings.Contains(name, kw) {
			return false
		}
	}
	return true
}

// log returns slog's current default so messages follow a reinitialised logger.
func log() *slog.Logger {
	return slog.Default()
}

// CleanDirectory removes or archives files under opts.Dir according to
// opts.Mode. A missing directory logs a warning and returns an empty report.
func CleanDirectory(ctx context.Context, opts CleanOptions) (*CleanupReport, error) {
	switch opts.Mode {
	case ModeFull, ModeFilesOnly, ModeRetainLastN:
	default:
		return nil, serrors.New(serrors.ErrCodeInvalidMode,
			"invalid cleanup mode "+opts.Mode+": use 'full', 'files_only', or 'retain_last_n'", nil)
	}
	if opts.Pattern != "" {
		if _, err := filepath.Match(opts.Pattern, ""); err != nil {
			return nil, serrors.New(serrors.ErrCodeInvalidInput, "invalid file pattern "+opts.Pattern, err)
		}
	}

	report := &CleanupReport{Dir: opts.Dir, Mode: opts.Mode}
	if _, err := os.Stat(opts.Dir); os.IsNotExist(err) {
		log().Warn("Directory does not exist", slog.String("dir", opts.Dir))
		report.Missing = true
		return report, nil
	}

	var err error
	if report.InitialSize, err = DirSize(opts.Dir); err != nil {
		return nil, err
	}
	log().Info("Initial directory size", slog.String("size", HumanReadableSize(float64(report.InitialSize), 2)))

	switch opts.Mode {
	case ModeFull:
		err = cleanFull(ctx, opts, report)
	case ModeFilesOnly:
		err = cleanFilesOnly(ctx, opts, report)
	case ModeRetainLastN:
		err = cleanRetainLastN(ctx, opts, report)
	}
	if err != nil {
		return report, err
	}

	if report.FinalSize, err = DirSize(opts.Dir); err != nil {
		return report, err
	}
	log().Info("Cleanup completed",
		slog.String("final_size", HumanReadableSize(float64(report.FinalSize), 2)),
		slog.String("freed", HumanReadableSize(float64(report.Freed()), 2)),
		slog.Int("deleted", len(report.Deleted)),
		slog.Int("compressed", len(report.Compressed)))
	return report, nil
}

// releaseLogger shuts the logger down when requested and returns a function
// that restores it. Without shutdown it returns the active file to protect.
func releaseLogger(opts CleanOptions) (active string, restore func() error, err error) {
	restore = func() error { return nil }
	if opts.Logger == nil {
		return "", restore, nil
	}
	if !opts.RequiresLoggerShutdown {
		return opts.Logger.ActiveFile(), restore, nil
	}
	if !opts.Logger.Initialized() {
		return "", restore, nil
	}
	log().Info("Shutting down logger before cleanup")
	if err := opts.Logger.Shutdown(); err != nil {
		return "", restore, err
	}
	return "", func() error {
		if _, err := opts.Logger.Reinit(); err != nil {
			return err
		}
		log().Info("Logger reinitialized after cleanup")
		return nil
	}, nil
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ra, err1 := filepath.Abs(a)
	rb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return false
	}
	if ea, err := filepath.EvalSymlinks(ra); err == nil {
		ra = ea
	}
	if eb, err := filepath.EvalSymlinks(rb); err == nil {
		rb = eb
	}
	return ra == rb
}

func cleanFull(ctx context.Context, opts CleanOptions, report *CleanupReport) (err error) {
	log().Info("Deleting entire directory", slog.String("dir", opts.Dir))
	active, restore, err := releaseLogger(opts)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); err == nil {
			err = rerr
		}
	}()

	if opts.RequiresLoggerShutdown {
		var files []string
		_ = filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err := os.RemoveAll(opts.Dir); err != nil {
			return serrors.New(serrors.ErrCodeWriteFailed, "cannot remove "+opts.Dir, err)
		}
		report.Deleted = files
		return nil
	}

	var dirs []string
	walkErr := filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != opts.Dir {
				dirs = append(dirs, path)
			}
			return nil
		}
		if samePath(path, active) {
			log().Info("Skipping currently active log file", slog.String("file", path))
			report.Skipped = append(report.Skipped, path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		report.Deleted = append(report.Deleted, path)
		return nil
	})
	if walkErr != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cleanup of "+opts.Dir+" failed", walkErr)
	}

	// deepest first so parents empty out
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		if entries, err := os.ReadDir(d); err == nil && len(entries) == 0 {
			if err := os.Remove(d); err == nil {
				log().Debug("Removed empty directory", slog.String("dir", d))
			}
		}
	}
	return nil
}

func cleanFilesOnly(ctx context.Context, opts CleanOptions, report *CleanupReport) (err error) {
	log().Info("Deleting files but keeping folder structure", slog.String("dir", opts.Dir))
	active, restore, err := releaseLogger(opts)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); err == nil {
			err = rerr
		}
	}()

	walkErr := filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !opts.matches(d.Name()) {
			return nil
		}
		if samePath(path, active) {
			log().Info("Skipping currently active log file", slog.String("file", path))
			report.Skipped = append(report.Skipped, path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		report.Deleted = append(report.Deleted, path)
		return nil
	})
	if walkErr != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cleanup of "+opts.Dir+" failed", walkErr)
	}
	return nil
}

type datedFile struct {
	path    string
	modTime time.Time
}

func cleanRetainLastN(ctx context.Context, opts CleanOptions, report *CleanupReport) error {
	if opts.RetainLastN < 0 {
		return serrors.Newf(serrors.ErrCodeInvalidInput, "retain_last_n must not be negative, got %d", opts.RetainLastN)
	}
	log().Info("Retaining newest files", slog.Int("retain_last_n", opts.RetainLastN), slog.String("dir", opts.Dir))

	dirs := []string{opts.Dir}
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return serrors.New(serrors.ErrCodeReadFailed, "cannot list "+opts.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(opts.Dir, e.Name()))
		}
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates, err := matchingFiles(dir, opts)
		if err != nil {
			return err
		}
		if len(candidates) <= opts.RetainLastN {
			continue
		}
		for _, old := range candidates[opts.RetainLastN:] {
			if opts.Compress {
				archive, err := CompressFile(old.path, filepath.Join(dir, CompressedDir))
				if err != nil {
					return err
				}
				report.Compressed = append(report.Compressed, archive)
				continue
			}
			if err := os.Remove(old.path); err != nil {
				return serrors.New(serrors.ErrCodeWriteFailed, "cannot delete "+old.path, err)
			}
			log().Info("Deleted file", slog.String("file", old.path))
			report.Deleted = append(report.Deleted, old.path)
		}
	}
	return nil
}

// matchingFiles lists regular files directly in dir, newest first.
func matchingFiles(dir string, opts CleanOptions) ([]datedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeReadFailed, "cannot list "+dir, err)
	}
	var out []datedFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !opts.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, datedFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].modTime.After(out[j].modTime) })
	return out, nil
}
