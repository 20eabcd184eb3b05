package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsense/synapsense/internal/config"
	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/ui"
)

func testCatalog(t *testing.T, opts ...Option) *Catalog {
	t.Helper()
	return NewCatalog(t.TempDir(), config.DefaultDatasets(), opts...)
}

func fastRetry() serrors.RetryConfig {
	return serrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

// zipOf builds an archive holding name -> content entries.
func zipOf(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCatalog_Path(t *testing.T) {
	c := testCatalog(t)

	got, err := c.Path("KITTI", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.DataRoot(), "KITTI"), got)

	got, err = c.Path("IODataset", "event")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.DataRoot(), "IODataset", "dvs"), got)
}

func TestCatalog_PathErrors(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Path("ImageNet", "")
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnknownDataset))

	_, err = c.Path("IODataset", "radar")
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnknownModality))

	_, err = c.Path("DSEC", "lidar")
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnknownModality))
}

func TestCatalog_NamesSortedCaseInsensitive(t *testing.T) {
	assert.Equal(t, []string{"DSEC", "IODataset", "KITTI", "MVSEC", "nuScenes"}, testCatalog(t).Names())
}

func TestCatalog_Validate(t *testing.T) {
	// Given: only the IODataset lidar directory exists
	c := testCatalog(t)
	require.NoError(t, os.MkdirAll(filepath.Join(c.DataRoot(), "IODataset", "lidar"), 0o755))

	// Then: existing paths validate, missing and unknown ones do not
	assert.True(t, c.Validate("IODataset", ""))
	assert.True(t, c.Validate("IODataset", "lidar"))
	assert.False(t, c.Validate("IODataset", "imu"))
	assert.False(t, c.Validate("KITTI", ""))
	assert.False(t, c.Validate("nope", ""))
}

func TestCatalog_Show(t *testing.T) {
	c := NewCatalog(t.TempDir(), map[string]config.DatasetConfig{
		"Tiny": {Description: "a test set", Modalities: "1x LiDAR", Root: "tiny"},
	})
	var buf bytes.Buffer

	require.NoError(t, c.Show(&buf, ui.NoColorStyles()))

	assert.Equal(t, "Available Datasets:\n\nTiny:\n  Description: a test set\n  Modalities: 1x LiDAR\n\n", buf.String())
}

func TestBuildTree_RenderLayout(t *testing.T) {
	// Given: a dataset with nested and empty directories
	root := filepath.Join(t.TempDir(), "IODataset")
	for _, f := range []string{"b.pcd", "a.pcd", "c.PCD", "d.pcd", "README", "lidar/x.bin", "imu/data.csv"} {
		touch(t, filepath.Join(root, f))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	// When: building and rendering the tree
	tree, err := BuildTree(root)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf, ui.NoColorStyles()))

	// Then: dirs come first, extensions group with a three-name preview
	want := "Listing files in: " + root + "\n\n" +
		"empty/\n" +
		"    (No files available)\n" +
		"imu/\n" +
		"    1 *.csv - data.csv\n" +
		"lidar/\n" +
		"    1 *.bin - x.bin\n" +
		"4 *.pcd - a.pcd, b.pcd, c.PCD, ...\n" +
		"1 *[No Extension] - README\n"
	assert.Equal(t, want, buf.String())
	assert.True(t, tree.HasFiles)
}

func TestBuildTree_EmptyDataset(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	tree, err := BuildTree(root)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tree.Render(&buf, ui.NoColorStyles()))

	assert.False(t, tree.HasFiles)
	assert.Contains(t, buf.String(), "sub/\n    (No files available)\n")
	assert.Contains(t, buf.String(), "(No files found in this dataset)")
}

func TestCatalog_ListFiles_Missing(t *testing.T) {
	_, err := testCatalog(t).ListFiles("MVSEC", "")

	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))
}

func TestDownload_FetchesAndExtracts(t *testing.T) {
	// Given: a server returning a zip archive
	body := zipOf(t, map[string]string{"lidar/scan.bin": "points", "README.txt": "hi"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	c := testCatalog(t, WithRetry(fastRetry()))

	// When: downloading with extraction
	var lastProgress int64
	res, err := c.Download(context.Background(), "DSEC", DownloadOptions{
		URL:      srv.URL + "/dsec.zip",
		Extract:  true,
		Progress: func(n, _ int64) { lastProgress = n },
	})

	// Then: the archive and its files are on disk
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, filepath.Join(c.DataRoot(), "DSEC.zip"), res.Archive)
	assert.Equal(t, int64(len(body)), res.Bytes)
	assert.Equal(t, res.Bytes, lastProgress)
	assert.Len(t, res.Extracted, 2)
	data, err := os.ReadFile(filepath.Join(c.DataRoot(), "DSEC", "lidar", "scan.bin"))
	require.NoError(t, err)
	assert.Equal(t, "points", string(data))
	assert.NoFileExists(t, res.Archive+".tmp")
}

func TestDownload_SkipsExisting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	c := testCatalog(t)
	require.NoError(t, os.MkdirAll(filepath.Join(c.DataRoot(), "KITTI"), 0o755))

	res, err := c.Download(context.Background(), "KITTI", DownloadOptions{URL: srv.URL})

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, hits.Load())
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	// Given: a server failing twice before succeeding
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("archive"))
	}))
	defer srv.Close()
	c := testCatalog(t, WithRetry(fastRetry()))

	// When: downloading with overwrite
	res, err := c.Download(context.Background(), "MVSEC", DownloadOptions{URL: srv.URL, Overwrite: true})

	// Then: the third attempt wins
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int64(7), res.Bytes)
}

func TestDownload_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c := testCatalog(t, WithRetry(fastRetry()))

	_, err := c.Download(context.Background(), "nuScenes", DownloadOptions{URL: srv.URL})

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeDownloadFailed))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_FailureLeavesNoDataset(t *testing.T) {
	// Given: a server that 404s once and then serves the archive
	body := zipOf(t, map[string]string{"imu/walk.csv": "t,ax"})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	c := testCatalog(t, WithRetry(fastRetry()))
	opts := DownloadOptions{URL: srv.URL, Extract: true}

	// When: the first download fails
	_, err := c.Download(context.Background(), "DSEC", opts)
	require.Error(t, err)

	// Then: no dataset directory is left behind and a retry fetches again
	assert.NoDirExists(t, filepath.Join(c.DataRoot(), "DSEC"))
	res, err := c.Download(context.Background(), "DSEC", opts)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int32(2), hits.Load())
	assert.FileExists(t, filepath.Join(c.DataRoot(), "DSEC", "imu", "walk.csv"))
}

func TestDownload_BadArchiveRemovesDataset(t *testing.T) {
	// Given: a server returning something that is not a zip
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a zip archive"))
	}))
	defer srv.Close()
	c := testCatalog(t, WithRetry(fastRetry()))

	// When: downloading with extraction
	_, err := c.Download(context.Background(), "KITTI", DownloadOptions{URL: srv.URL, Extract: true})

	// Then: the half-made dataset directory is removed
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(c.DataRoot(), "KITTI"))
}

func TestDownload_NoURL(t *testing.T) {
	_, err := testCatalog(t).Download(context.Background(), "DSEC", DownloadOptions{})

	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestDownload_SpaceCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()
	var asked uint64
	c := testCatalog(t, WithRetry(fastRetry()), WithSpaceCheck(func(dir string, need uint64) error {
		asked = need
		return serrors.New(serrors.ErrCodeDiskFull, "full", nil)
	}))

	_, err := c.Download(context.Background(), "DSEC", DownloadOptions{URL: srv.URL})

	assert.True(t, serrors.HasCode(err, serrors.ErrCodeDiskFull))
	assert.Equal(t, uint64(10), asked)
}

func TestDownload_WaitsForLock(t *testing.T) {
	// Given: another holder of the dataset lock
	c := testCatalog(t)
	other := NewFileLock(c.DataRoot(), "DSEC")
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = other.Unlock() }()

	// When: downloading with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Download(ctx, "DSEC", DownloadOptions{URL: "http://127.0.0.1:1/never"})

	// Then: the download gives up waiting
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileLock_Exclusive(t *testing.T) {
	dir := t.TempDir()
	a := NewFileLock(dir, "KITTI")
	b := NewFileLock(dir, "KITTI")

	require.NoError(t, a.Lock(context.Background()))
	assert.Equal(t, filepath.Join(dir, ".KITTI.lock"), a.Path())

	ok, err := b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock())
	require.NoError(t, a.Unlock())
	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
}

func TestExtractZip_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archive, zipOf(t, map[string]string{"../escape.txt": "boom"}), 0o644))

	_, err := ExtractZip(context.Background(), archive, filepath.Join(dir, "out"))

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidPath))
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractZip_CorruptArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0o644))

	_, err := ExtractZip(context.Background(), archive, t.TempDir())

	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileCorrupt))
}
