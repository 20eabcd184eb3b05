package dataset

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/ignore"
	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/scanner"
	"github.com/synapsense/synapsense/internal/store"
)

// dirKeyAliases maps dataset directory keys that are not modality names.
var dirKeyAliases = map[string]modality.Modality{
	"image":  modality.RGB,
	"camera": modality.RGB,
	"event":  modality.DVS,
	"events": modality.DVS,
}

// upsertBatch bounds the rows written per transaction while indexing.
const upsertBatch = 500

// IndexOptions control Index.
type IndexOptions struct {
	Registry        *modality.Registry
	Workers         int
	ExcludePatterns []string
	Progress        func(seen, matched int)
}

// IndexResult describes a finished Index.
type IndexResult struct {
	Dir       string
	Manifest  string
	Files     int
	Indexed   int
	Unchanged int
	Pruned    int
	Duration  time.Duration
}

// ScanOptions returns scanner options for the dataset, mapping its
// configured directories to modalities and applying its .synapseignore.
func (c *Catalog) ScanOptions(name string, opts IndexOptions) (*scanner.ScanOptions, error) {
	def, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]modality.Modality, len(def.Dirs))
	for key, sub := range def.Dirs {
		m, ok := dirKeyAliases[strings.ToLower(key)]
		if !ok {
			parsed, err := modality.Parse(key)
			if err != nil {
				c.logger.Debug("Dataset directory key is not a modality",
					slog.String("dataset", name), slog.String("key", key))
				continue
			}
			m = parsed
		}
		dirs[strings.Trim(sub, "/")] = m
	}
	root, _ := c.Path(name, "")
	rules, err := ignore.Load(root)
	if err != nil {
		return nil, err
	}
	if n := rules.Len(); n > 0 {
		c.logger.Debug("Loaded ignore rules", slog.String("dataset", name), slog.Int("rules", n))
	}
	return &scanner.ScanOptions{
		ExcludePatterns: opts.ExcludePatterns,
		Ignore:          rules,
		DirModalities:   dirs,
		Workers:         opts.Workers,
		ProgressFunc:    opts.Progress,
	}, nil
}

// existingDir returns the dataset directory or ERR_201 when it is missing.
func (c *Catalog) existingDir(name string) (string, error) {
	dir, err := c.Path(name, "")
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", serrors.New(serrors.ErrCodeFileNotFound, "dataset directory not found: "+dir, err).
			WithSuggestion("run 'synapsense dataset download " + name + "' first")
	}
	return dir, nil
}

// OpenManifest opens the manifest of an existing dataset directory.
func (c *Catalog) OpenManifest(name string) (*store.Manifest, string, error) {
	dir, err := c.existingDir(name)
	if err != nil {
		return nil, "", err
	}
	m, err := store.Open(store.PathFor(dir))
	if err != nil {
		return nil, "", err
	}
	return m, dir, nil
}

// Index scans the dataset directory into its manifest. Files whose size and
// modification time are unchanged keep their rows; rows for vanished files
// are pruned.
func (c *Catalog) Index(ctx context.Context, name string, opts IndexOptions) (*IndexResult, error) {
	start := time.Now()
	scanOpts, err := c.ScanOptions(name, opts)
	if err != nil {
		return nil, err
	}
	dir, err := c.existingDir(name)
	if err != nil {
		return nil, err
	}

	lock := NewFileLock(c.dataRoot, name)
	if err := lock.Lock(ctx); err != nil {
		return nil, serrors.New(serrors.ErrCodeWriteFailed, "failed to acquire dataset lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	m, err := store.Open(store.PathFor(dir))
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	existing, err := m.List(ctx, "")
	if err != nil {
		return nil, err
	}
	known := make(map[string]store.Entry, len(existing))
	for _, e := range existing {
		known[e.Path] = e
	}

	results, err := scanner.New(opts.Registry).Scan(ctx, dir, scanOpts)
	if err != nil {
		return nil, err
	}

	res := &IndexResult{Dir: dir, Manifest: m.Path()}
	seen := make(map[string]struct{})
	batch := make([]store.Entry, 0, upsertBatch)
	flush := func() error {
		if err := m.Upsert(ctx, batch...); err != nil {
			return err
		}
		res.Indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	var scanErr error
	for r := range results {
		if r.Error != nil {
			scanErr = r.Error
			continue
		}
		fi := r.File
		seen[fi.Path] = struct{}{}
		res.Files++
		if prev, ok := known[fi.Path]; ok && !prev.Changed(fi.Size, fi.ModTime) && prev.Modality == string(fi.Modality) {
			res.Unchanged++
			continue
		}
		batch = append(batch, store.Entry{
			Path:      fi.Path,
			Modality:  string(fi.Modality),
			Extension: fi.Extension,
			Size:      fi.Size,
			ModTime:   fi.ModTime,
		})
		if len(batch) == upsertBatch {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scanErr != nil {
		// a partial scan must not prune rows
		return nil, scanErr
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if res.Pruned, err = m.Prune(ctx, seen); err != nil {
		return nil, err
	}
	if err := m.SetState(ctx, store.StateKeyRoot, dir); err != nil {
		return nil, err
	}
	if err := m.SetState(ctx, store.StateKeyLastScan, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	c.logger.Info("Indexed dataset",
		slog.String("dataset", name),
		slog.Int("files", res.Files),
		slog.Int("indexed", res.Indexed),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("pruned", res.Pruned),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Stats reads manifest statistics for an indexed dataset.
func (c *Catalog) Stats(ctx context.Context, name string) (*store.Stats, string, error) {
	m, _, err := c.OpenManifest(name)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = m.Close() }()
	st, err := m.Stats(ctx)
	if err != nil {
		return nil, "", err
	}
	return st, m.Path(), nil
}
