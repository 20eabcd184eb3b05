package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
	"github.com/synapsense/synapsense/internal/store"
)

func indexOpts() IndexOptions {
	return IndexOptions{Registry: modality.NewRegistry(modality.DefaultExtensions()), Workers: 2}
}

func TestCatalog_ScanOptions_MapsDirs(t *testing.T) {
	c := testCatalog(t)

	opts, err := c.ScanOptions("IODataset", IndexOptions{})

	require.NoError(t, err)
	assert.Equal(t, map[string]modality.Modality{
		"image": modality.RGB,
		"lidar": modality.LiDAR,
		"imu":   modality.IMU,
		"dvs":   modality.DVS,
	}, opts.DirModalities)
}

func TestCatalog_Index(t *testing.T) {
	// Given: the sample dataset with one file per modality
	c := testCatalog(t)
	root := filepath.Join(c.DataRoot(), "IODataset")
	touch(t, filepath.Join(root, "imu", "imu.csv"))
	touch(t, filepath.Join(root, "dvs", "events.csv"))
	touch(t, filepath.Join(root, "lidar", "cloud.pcd"))
	touch(t, filepath.Join(root, "image", "frame.png"))
	touch(t, filepath.Join(root, "README.md"))
	ctx := context.Background()

	// When: indexing it
	res, err := c.Index(ctx, "IODataset", indexOpts())

	// Then: every data file is recorded under its directory's modality
	require.NoError(t, err)
	assert.Equal(t, 4, res.Files)
	assert.Equal(t, 4, res.Indexed)
	assert.Equal(t, store.PathFor(root), res.Manifest)

	st, path, err := c.Stats(ctx, "IODataset")
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, path)
	assert.Equal(t, 4, st.Files)
	mods := make(map[string]int)
	for _, ms := range st.ByModality {
		mods[ms.Modality] = ms.Files
	}
	assert.Equal(t, map[string]int{"dvs": 1, "imu": 1, "lidar": 1, "rgb": 1}, mods)
}

func TestCatalog_Index_IgnoreFile(t *testing.T) {
	// Given: a dataset whose .synapseignore hides a scratch directory
	c := testCatalog(t)
	root := filepath.Join(c.DataRoot(), "IODataset")
	touch(t, filepath.Join(root, "imu", "imu.csv"))
	touch(t, filepath.Join(root, "imu", "scratch", "tmp.csv"))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".synapseignore"), []byte("scratch/\n"), 0o644))

	// When: indexing it
	res, err := c.Index(context.Background(), "IODataset", indexOpts())

	// Then: the ignored file is not recorded
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	opts, err := c.ScanOptions("IODataset", IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Ignore.Len())
}

func TestCatalog_Index_Incremental(t *testing.T) {
	// Given: an indexed dataset
	c := testCatalog(t)
	root := filepath.Join(c.DataRoot(), "KITTI")
	touch(t, filepath.Join(root, "a.pcd"))
	touch(t, filepath.Join(root, "b.pcd"))
	ctx := context.Background()
	_, err := c.Index(ctx, "KITTI", indexOpts())
	require.NoError(t, err)

	// When: one file changes, one disappears and one is added
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.pcd"), []byte("changed"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.pcd"), later, later))
	require.NoError(t, os.Remove(filepath.Join(root, "b.pcd")))
	touch(t, filepath.Join(root, "c.png"))
	res, err := c.Index(ctx, "KITTI", indexOpts())

	// Then: only the difference is written
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 0, res.Unchanged)
	assert.Equal(t, 1, res.Pruned)

	// And: a third run changes nothing
	res, err = c.Index(ctx, "KITTI", indexOpts())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Indexed)
	assert.Equal(t, 2, res.Unchanged)
	assert.Equal(t, 0, res.Pruned)
}

func TestCatalog_Index_RecordsState(t *testing.T) {
	c := testCatalog(t)
	root := filepath.Join(c.DataRoot(), "DSEC")
	touch(t, filepath.Join(root, "x.png"))
	ctx := context.Background()

	_, err := c.Index(ctx, "DSEC", indexOpts())
	require.NoError(t, err)

	m, _, err := c.OpenManifest("DSEC")
	require.NoError(t, err)
	defer m.Close()
	got, err := m.GetState(ctx, store.StateKeyRoot)
	require.NoError(t, err)
	assert.Equal(t, root, got)
	last, err := m.GetState(ctx, store.StateKeyLastScan)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, last)
	assert.NoError(t, err)
}

func TestCatalog_Index_MissingDataset(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Index(context.Background(), "MVSEC", indexOpts())
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))

	_, err = c.Index(context.Background(), "Unknown", indexOpts())
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnknownDataset))

	_, _, err = c.Stats(context.Background(), "MVSEC")
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))
}
