package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// userAgent identifies download requests.
const userAgent = "synapsense/1.0"

// DownloadOptions control Download.
type DownloadOptions struct {
	// URL overrides the catalog URL of the dataset.
	URL string
	// Overwrite re-downloads when the dataset directory already exists.
	Overwrite bool
	// Extract unpacks the archive into the dataset directory.
	Extract bool
	// Progress, when set, is called as bytes arrive. total is -1 if unknown.
	Progress func(downloaded, total int64)
}

// DownloadResult describes a finished Download.
type DownloadResult struct {
	Dir       string
	Archive   string
	Bytes     int64
	Extracted []string
	// Skipped is true when the dataset was already present.
	Skipped bool
}

// Download fetches the dataset archive to <data_root>/<root>.zip, retrying
// transient failures with exponential backoff. A cross-process lock on
// <data_root>/.<name>.lock serialises concurrent downloads.
func (c *Catalog) Download(ctx context.Context, name string, opts DownloadOptions) (*DownloadResult, error) {
	def, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	url := opts.URL
	if url == "" {
		url = def.URL
	}
	if url == "" {
		return nil, serrors.New(serrors.ErrCodeInvalidInput, "no download URL for dataset "+name, nil).
			WithSuggestion("pass --url or set datasets." + name + ".url in .synapsense.yaml")
	}

	dir, _ := c.Path(name, "")
	res := &DownloadResult{Dir: dir, Archive: dir + ".zip"}
	if exists(dir) && !opts.Overwrite {
		c.logger.Info("Dataset already exists, skipping download", slog.String("path", dir))
		res.Skipped = true
		return res, nil
	}

	lock := NewFileLock(c.dataRoot, name)
	if err := lock.Lock(ctx); err != nil {
		return nil, serrors.New(serrors.ErrCodeWriteFailed, "failed to acquire download lock", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("Failed to release download lock", slog.String("error", err.Error()))
		}
	}()

	// another process may have finished while we waited
	if exists(dir) && !opts.Overwrite {
		res.Skipped = true
		return res, nil
	}

	// the archive lives next to dir; dir itself marks a completed download
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+filepath.Dir(dir), err)
	}
	created := !exists(dir)

	c.logger.Info("Downloading dataset", slog.String("dataset", name), slog.String("url", url))
	retry := c.retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = serrors.IsRetryable
	}
	res.Bytes, err = serrors.RetryWithResult(ctx, retry, func() (int64, error) {
		return c.fetch(ctx, url, res.Archive, opts.Progress)
	})
	if err != nil {
		c.logger.Error("Failed to download dataset", slog.String("dataset", name), slog.String("error", err.Error()))
		return nil, err
	}
	c.logger.Info("Downloaded dataset archive", slog.String("path", res.Archive), slog.Int64("bytes", res.Bytes))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+dir, err)
	}
	if opts.Extract {
		res.Extracted, err = ExtractZip(ctx, res.Archive, dir)
		if err != nil {
			if created {
				if rmErr := os.RemoveAll(dir); rmErr != nil {
					c.logger.Warn("Failed to remove partial dataset", slog.String("path", dir), slog.String("error", rmErr.Error()))
				}
			}
			return nil, err
		}
		c.logger.Info("Extracted dataset archive", slog.String("dir", dir), slog.Int("files", len(res.Extracted)))
	}
	return res, nil
}

// fetch performs one GET into dest through a temporary file.
func (c *Catalog) fetch(ctx context.Context, url, dest string, progress func(int64, int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeInvalidInput, "invalid download URL "+url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, serrors.New(serrors.ErrCodeNetworkTimeout, "download timed out: "+url, err)
		}
		return 0, serrors.New(serrors.ErrCodeNetworkUnavailable, "download request failed: "+url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e := serrors.New(serrors.ErrCodeDownloadFailed, fmt.Sprintf("download failed with status: %s", resp.Status), nil).
			WithDetail("url", url)
		// client errors other than timeouts and rate limits will not improve
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			e.Retryable = false
		}
		return 0, e
	}

	if c.spaceCheck != nil && resp.ContentLength > 0 {
		if err := c.spaceCheck(filepath.Dir(dest), uint64(resp.ContentLength)); err != nil {
			return 0, err
		}
	}

	tmp := dest + ".tmp"
	defer func() { _ = os.Remove(tmp) }()
	f, err := os.Create(tmp)
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeWriteFailed, "failed to create temp file", err)
	}
	defer func() { _ = f.Close() }()

	var w io.Writer = f
	if progress != nil {
		w = &progressWriter{w: f, total: resp.ContentLength, fn: progress}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, serrors.New(serrors.ErrCodeDownloadFailed, "download interrupted: "+url, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return 0, serrors.Newf(serrors.ErrCodeDownloadFailed, "download truncated: got %d of %d bytes", n, resp.ContentLength)
	}
	if err := f.Sync(); err != nil {
		return 0, serrors.New(serrors.ErrCodeWriteFailed, "failed to sync "+tmp, err)
	}
	if err := f.Close(); err != nil {
		return 0, serrors.New(serrors.ErrCodeWriteFailed, "failed to close "+tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return 0, serrors.New(serrors.ErrCodeWriteFailed, "failed to rename "+tmp, err)
	}
	return n, nil
}

type progressWriter struct {
	w     io.Writer
	n     int64
	total int64
	fn    func(int64, int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	p.fn(p.n, p.total)
	return n, err
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
