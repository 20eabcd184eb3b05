package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

// Scanner discovers modality files under a directory.
type Scanner struct {
	reg *modality.Registry
}

// New creates a Scanner classifying with reg. A nil registry uses
// modality.Default.
func New(reg *modality.Registry) *Scanner {
	if reg == nil {
		reg = modality.Default
	}
	return &Scanner{reg: reg}
}

// candidate is a walked path waiting for classification.
type candidate struct {
	rel string
	abs string
	d   fs.DirEntry
}

// Scan walks root and streams every file whose extension resolves to a
// modality. The channel is closed when scanning completes or ctx is done.
// Results arrive in no particular order.
func (s *Scanner) Scan(ctx context.Context, root string, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeInvalidPath, "invalid scan root "+root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "scan root not found: "+absRoot, err)
		}
		return nil, serrors.New(serrors.ErrCodeReadFailed, "failed to stat scan root", err)
	}
	if !info.IsDir() {
		return nil, serrors.New(serrors.ErrCodeInvalidPath, "scan root is not a directory: "+absRoot, nil)
	}

	op := opts.Op
	if op == "" {
		op = modality.OpRead
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan ScanResult, workers*10)
	paths := make(chan candidate, workers*10)

	go func() {
		defer close(results)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(paths)
			return s.walk(gctx, absRoot, opts, paths)
		})

		var seen, matched atomic.Int64
		for range workers {
			g.Go(func() error {
				for c := range paths {
					fi, ok := s.classify(c, op, opts)
					n := seen.Add(1)
					m := matched.Load()
					if ok {
						m = matched.Add(1)
					}
					if opts.ProgressFunc != nil {
						opts.ProgressFunc(int(n), int(m))
					}
					if !ok {
						continue
					}
					select {
					case results <- ScanResult{File: fi}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			select {
			case results <- ScanResult{Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return results, nil
}

// walk feeds candidate files into out.
func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, out chan<- candidate) error {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if shouldExcludeFile(relPath, opts) {
			return nil
		}

		select {
		case out <- candidate{rel: relPath, abs: path, d: d}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return serrors.New(serrors.ErrCodeReadFailed, "failed to walk "+absRoot, err)
	}
	return err
}

// classify resolves the modality of c and stats it.
func (s *Scanner) classify(c candidate, op modality.Op, opts *ScanOptions) (*FileInfo, bool) {
	m, ok := s.dirModality(c.rel, op, opts.DirModalities)
	if !ok {
		m, ok = s.reg.ResolveModality(c.rel, op)
	}
	if !ok {
		return nil, false
	}
	if len(opts.Modalities) > 0 && !slices.Contains(opts.Modalities, m) {
		return nil, false
	}

	var info fs.FileInfo
	var err error
	if c.d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(c.abs)
	} else {
		info, err = c.d.Info()
	}
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	return &FileInfo{
		Path:      filepath.ToSlash(c.rel),
		AbsPath:   c.abs,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Modality:  m,
		Extension: modality.FileExtension(c.rel),
	}, true
}

// Classify stats root/relPath and resolves its modality the way Scan does.
// ok is false for missing, excluded or unsupported files.
func (s *Scanner) Classify(root, relPath string, opts *ScanOptions) (*FileInfo, bool) {
	if opts == nil {
		opts = &ScanOptions{}
	}
	if Excluded(relPath, false, opts) {
		return nil, false
	}
	op := opts.Op
	if op == "" {
		op = modality.OpRead
	}
	rel := filepath.FromSlash(relPath)
	abs := filepath.Join(root, rel)
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, false
	}
	if info.Mode()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
		return nil, false
	}
	return s.classify(candidate{rel: rel, abs: abs, d: fs.FileInfoToDirEntry(info)}, op, opts)
}

// dirModality returns the modality of the deepest DirModalities entry
// containing rel, if that modality supports the file's extension.
func (s *Scanner) dirModality(rel string, op modality.Op, dirs map[string]modality.Modality) (modality.Modality, bool) {
	if len(dirs) == 0 {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	best, bestLen := modality.Modality(""), -1
	for dir, m := range dirs {
		dir = strings.Trim(dir, "/")
		if dir != "" && !strings.HasPrefix(rel, dir+"/") {
			continue
		}
		if len(dir) > bestLen {
			best, bestLen = m, len(dir)
		}
	}
	if bestLen < 0 {
		return "", false
	}
	exts, err := s.reg.SupportedExtensions(best, op)
	if err != nil || !modality.ValidateExtension(rel, exts) {
		return "", false
	}
	return best, true
}

// Collect drains a scan into a slice, returning the first error seen.
func Collect(results <-chan ScanResult) ([]*FileInfo, error) {
	var files []*FileInfo
	var firstErr error
	for r := range results {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = r.Error
			}
			continue
		}
		files = append(files, r.File)
	}
	return files, firstErr
}

// Excluded reports whether relPath (relative to a scan root) would be skipped
// by a scan with opts. The watcher uses it to filter events.
func Excluded(relPath string, isDir bool, opts *ScanOptions) bool {
	if opts == nil {
		opts = &ScanOptions{}
	}
	relPath = filepath.FromSlash(relPath)
	// any excluded ancestor excludes the path
	dir := filepath.Dir(relPath)
	for dir != "." && dir != string(filepath.Separator) {
		if shouldExcludeDir(dir, opts) {
			return true
		}
		dir = filepath.Dir(dir)
	}
	if isDir {
		return shouldExcludeDir(relPath, opts)
	}
	return shouldExcludeFile(relPath, opts)
}

// shouldExcludeDir checks if a directory should be skipped.
func shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return opts.Ignore.Match(relPath, true)
}

// shouldExcludeFile checks if a file should be skipped.
func shouldExcludeFile(relPath string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return opts.Ignore.Match(relPath, false)
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	pattern = filepath.FromSlash(pattern)
	sep := string(filepath.Separator)

	// **/name matches the name at any depth
	if strings.HasPrefix(pattern, "**"+sep) {
		name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**"+sep), sep+"**")
		return slices.Contains(strings.Split(relPath, sep), name)
	}

	// dir/** matches the directory itself and everything below
	prefix := strings.TrimSuffix(pattern, sep+"**")
	return relPath == prefix || strings.HasPrefix(relPath, prefix+sep)
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	pattern = filepath.FromSlash(pattern)
	sep := string(filepath.Separator)

	if strings.HasSuffix(pattern, sep+"**") && !strings.HasPrefix(pattern, "**"+sep) {
		return strings.HasPrefix(relPath, strings.TrimSuffix(pattern, sep+"**")+sep)
	}

	if strings.HasPrefix(pattern, "**"+sep) {
		suffix := strings.TrimPrefix(pattern, "**"+sep)
		if matched, err := filepath.Match(suffix, baseName); err == nil && matched {
			return true
		}
		// directory component anywhere in the path
		parts := strings.Split(filepath.Dir(relPath), sep)
		return slices.Contains(parts, strings.TrimSuffix(suffix, sep+"**"))
	}

	// patterns with a directory component are matched against the whole path
	if strings.Contains(pattern, sep) {
		matched, err := filepath.Match(pattern, relPath)
		return err == nil && matched
	}

	matched, err := filepath.Match(pattern, baseName)
	return err == nil && matched
}
