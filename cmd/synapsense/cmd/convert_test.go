package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality/lidar"
)

func TestConvertCmd_Directory(t *testing.T) {
	// Given: a directory with two point clouds and an unrelated file
	root := newTestProject(t)
	in := filepath.Join(root, "in")
	writeCloud(t, filepath.Join(in, "a.pcd"), squareCloud())
	writeCloud(t, filepath.Join(in, "nested", "b.pcd"), squareCloud())
	require.NoError(t, os.WriteFile(filepath.Join(in, "README.md"), []byte("notes"), 0o644))
	outDir := filepath.Join(root, "out")

	// When: converting the directory to PLY
	out, err := runCmd(t, root, "convert", "--to", "ply", "--out", outDir, in)

	// Then: both clouds are converted, keeping their layout
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 2 files converted")
	for _, name := range []string{"a.ply", filepath.Join("nested", "b.ply")} {
		b, err := lidar.New().Read(context.Background(), filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.Len(t, b.Data, 4)
	}
}

func TestConvertCmd_ForcedModalityForSharedExtension(t *testing.T) {
	// Given: an IMU CSV
	root := newTestProject(t)
	src := filepath.Join(root, "walk.txt")
	require.NoError(t, os.WriteFile(src, []byte("timestamp accel_x accel_y accel_z\n0 1 2 3\n1 2 3 4\n"), 0o644))
	outDir := filepath.Join(root, "out")

	// When: converting it as IMU to CSV
	_, err := runCmd(t, root, "convert", "--modality", "imu", "--to", ".csv", "--out", outDir, src)

	// Then: the CSV is written
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "walk.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "accel_x")
}

func TestConvertCmd_UnwritableExtension(t *testing.T) {
	// Given: a point cloud
	root := newTestProject(t)
	src := filepath.Join(root, "scan.pcd")
	writeCloud(t, src, squareCloud())

	// When: converting to an image format
	_, err := runCmd(t, root, "convert", "--to", ".png", "--out", root, src)

	// Then: the target extension is rejected before anything is written
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnsupportedExtension))
}

func TestConvertCmd_ExistingOutput(t *testing.T) {
	// Given: a conversion whose output already exists
	root := newTestProject(t)
	src := filepath.Join(root, "scan.pcd")
	writeCloud(t, src, squareCloud())
	outDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "scan.ply"), []byte("old"), 0o644))

	// When: converting without --overwrite
	out, err := runCmd(t, root, "convert", "--to", "ply", "--out", outDir, src)

	// Then: the file is reported as failed and left alone
	require.Error(t, err)
	assert.Contains(t, out, "output exists")
	data, _ := os.ReadFile(filepath.Join(outDir, "scan.ply"))
	assert.Equal(t, "old", string(data))

	// And: --overwrite replaces it
	_, err = runCmd(t, root, "convert", "--to", "ply", "--out", outDir, "--overwrite", src)
	require.NoError(t, err)
	b, err := lidar.New().Read(context.Background(), filepath.Join(outDir, "scan.ply"))
	require.NoError(t, err)
	assert.Len(t, b.Data, 4)
}

func TestConvertCmd_SameNameInSiblingDirs(t *testing.T) {
	// Given: two sequences holding a scan with the same file name
	root := newTestProject(t)
	in := filepath.Join(root, "in")
	writeCloud(t, filepath.Join(in, "seq1", "scan.pcd"), squareCloud())
	writeCloud(t, filepath.Join(in, "seq2", "scan.pcd"), squareCloud()[:3])
	outDir := filepath.Join(root, "out")

	// When: converting the directory with --overwrite
	out, err := runCmd(t, root, "convert", "--overwrite", "--to", "ply", "--out", outDir, in)

	// Then: each scan gets its own output
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 2 files converted")
	b1, err := lidar.New().Read(context.Background(), filepath.Join(outDir, "seq1", "scan.ply"))
	require.NoError(t, err)
	assert.Len(t, b1.Data, 4)
	b2, err := lidar.New().Read(context.Background(), filepath.Join(outDir, "seq2", "scan.ply"))
	require.NoError(t, err)
	assert.Len(t, b2.Data, 3)
}

func TestConvertCmd_CollidingOutputs(t *testing.T) {
	// Given: two file arguments with the same base name
	root := newTestProject(t)
	a := filepath.Join(root, "a", "scan.pcd")
	b := filepath.Join(root, "b", "scan.pcd")
	writeCloud(t, a, squareCloud())
	writeCloud(t, b, squareCloud())
	outDir := filepath.Join(root, "out")

	// When: converting both into one directory
	_, err := runCmd(t, root, "convert", "--overwrite", "--to", "ply", "--out", outDir, a, b)

	// Then: the clash is reported before anything is written
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeWriteFailed))
	assert.Contains(t, err.Error(), "two inputs convert to")
	assert.NoDirExists(t, outDir)
}

func TestConvertCmd_RequiresTarget(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "convert", root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "to")
}

func TestConvertCmd_NothingToConvert(t *testing.T) {
	root := newTestProject(t)
	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	_, err := runCmd(t, root, "convert", "--to", "ply", empty)

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}
