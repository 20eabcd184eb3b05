package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/scanner"
	"github.com/synapsense/synapsense/internal/store"
)

// ApplyStats counts what one Apply call changed.
type ApplyStats struct {
	Upserted int
	Deleted  int
	Skipped  int
	// ConfigChanged is set when the batch carried an OpConfigChange.
	ConfigChanged bool
}

// Applier applies event batches to a manifest.
type Applier struct {
	manifest *store.Manifest
	scanner  *scanner.Scanner
	root     string
	opts     *scanner.ScanOptions
	logger   *slog.Logger
}

// NewApplier creates an Applier for the dataset at root. opts controls
// classification and may be nil.
func NewApplier(m *store.Manifest, s *scanner.Scanner, root string, opts *scanner.ScanOptions) *Applier {
	if opts == nil {
		opts = &scanner.ScanOptions{}
	}
	return &Applier{manifest: m, scanner: s, root: root, opts: opts, logger: slog.Default()}
}

// Apply upserts created and modified files and removes deleted ones. A
// created directory is scanned so files moved in with it are picked up.
func (a *Applier) Apply(ctx context.Context, events []FileEvent) (ApplyStats, error) {
	var st ApplyStats
	var upserts []store.Entry

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		switch ev.Operation {
		case OpConfigChange:
			st.ConfigChanged = true
		case OpDelete, OpRename:
			n, err := a.remove(ctx, ev.Path)
			if err != nil {
				return st, err
			}
			st.Deleted += n
		case OpCreate, OpModify:
			if ev.IsDir {
				entries, err := a.scanDir(ctx, ev.Path)
				if err != nil {
					return st, err
				}
				upserts = append(upserts, entries...)
				continue
			}
			fi, ok := a.scanner.Classify(a.root, ev.Path, a.opts)
			if !ok {
				// gone again or not a modality file; drop any stale row
				n, err := a.remove(ctx, ev.Path)
				if err != nil {
					return st, err
				}
				st.Deleted += n
				st.Skipped++
				continue
			}
			upserts = append(upserts, entryFor(fi))
		}
	}

	if err := a.manifest.Upsert(ctx, upserts...); err != nil {
		return st, err
	}
	st.Upserted = len(upserts)
	a.logger.Debug("Applied watcher batch",
		slog.Int("events", len(events)),
		slog.Int("upserted", st.Upserted),
		slog.Int("deleted", st.Deleted))
	return st, nil
}

// remove deletes path and, in case it was a directory, everything below it.
func (a *Applier) remove(ctx context.Context, path string) (int, error) {
	existing, err := a.manifest.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	n := 0
	if existing != nil {
		if err := a.manifest.Delete(ctx, path); err != nil {
			return 0, err
		}
		n = 1
	}
	below, err := a.manifest.DeletePrefix(ctx, path)
	if err != nil {
		return n, err
	}
	return n + below, nil
}

func (a *Applier) scanDir(ctx context.Context, rel string) ([]store.Entry, error) {
	results, err := a.scanner.Scan(ctx, filepath.Join(a.root, filepath.FromSlash(rel)), a.subOptions(rel))
	if err != nil {
		return nil, err
	}
	files, err := scanner.Collect(results)
	if err != nil {
		return nil, err
	}
	entries := make([]store.Entry, 0, len(files))
	for _, fi := range files {
		fi.Path = rel + "/" + fi.Path
		entries = append(entries, entryFor(fi))
	}
	return entries, nil
}

// subOptions rebases directory hints onto the subdirectory rel.
func (a *Applier) subOptions(rel string) *scanner.ScanOptions {
	sub := *a.opts
	if len(a.opts.DirModalities) == 0 {
		return &sub
	}
	sub.DirModalities = make(map[string]modality.Modality)
	enclosing := -1
	for dir, m := range a.opts.DirModalities {
		switch {
		case dir == "" || dir == rel || isUnder(rel, dir):
			// rel sits inside the hinted directory; the deepest hint wins
			if len(dir) > enclosing {
				sub.DirModalities[""] = m
				enclosing = len(dir)
			}
		case isUnder(dir, rel):
			sub.DirModalities[dir[len(rel)+1:]] = m
		}
	}
	return &sub
}

func isUnder(path, dir string) bool {
	return len(path) > len(dir) && path[:len(dir)] == dir && path[len(dir)] == '/'
}

// entryFor converts a scanned file into a manifest entry.
func entryFor(fi *scanner.FileInfo) store.Entry {
	return store.Entry{
		Path:      fi.Path,
		Modality:  string(fi.Modality),
		Extension: fi.Extension,
		Size:      fi.Size,
		ModTime:   fi.ModTime,
	}
}
