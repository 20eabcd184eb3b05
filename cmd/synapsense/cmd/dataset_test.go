package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/store"
	"github.com/synapsense/synapsense/internal/ui"
)

// writeIODataset lays out a small IODataset under the project data root.
func writeIODataset(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "data", "IODataset")
	writeIMU(t, filepath.Join(dir, "imu", "walk.csv"))
	writeCloud(t, filepath.Join(dir, "lidar", "scan.pcd"), squareCloud())
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "image"), 0o755))
	writePNG(t, filepath.Join(dir, "image", "frame.png"), 2, 2)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dvs"), 0o755))
	return dir
}

func TestDatasetListCmd(t *testing.T) {
	root := newTestProject(t)

	out, err := runCmd(t, root, "dataset", "list")

	require.NoError(t, err)
	for _, name := range []string{"DSEC", "KITTI", "nuScenes", "MVSEC", "IODataset"} {
		assert.Contains(t, out, name+":")
	}
}

func TestDatasetPathCmd(t *testing.T) {
	root := newTestProject(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		errCode string
	}{
		{"dataset", []string{"IODataset"}, filepath.Join(root, "data", "IODataset"), ""},
		{"modality", []string{"IODataset", "event"}, filepath.Join(root, "data", "IODataset", "dvs"), ""},
		{"unknown dataset", []string{"Waymo"}, "", serrors.ErrCodeUnknownDataset},
		{"unknown modality", []string{"KITTI", "imu"}, "", serrors.ErrCodeUnknownModality},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, root, append([]string{"dataset", "path"}, tt.args...)...)
			if tt.errCode != "" {
				require.Error(t, err)
				assert.True(t, serrors.HasCode(err, tt.errCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestDatasetValidateCmd(t *testing.T) {
	// Given: a project where only IODataset exists
	root := newTestProject(t)
	writeIODataset(t, root)

	// When/Then: existing directories validate
	out, err := runCmd(t, root, "dataset", "validate", "IODataset", "imu")
	require.NoError(t, err)
	assert.Contains(t, out, "exists")

	// When/Then: missing ones fail
	_, err = runCmd(t, root, "dataset", "validate", "KITTI")
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))
}

func TestDatasetFilesCmd(t *testing.T) {
	// Given: an IODataset with an empty dvs directory
	root := newTestProject(t)
	writeIODataset(t, root)

	// When: listing its files
	out, err := runCmd(t, root, "dataset", "files", "IODataset")

	// Then: directories and extension groups are shown
	require.NoError(t, err)
	assert.Contains(t, out, "dvs/")
	assert.Contains(t, out, "(No files available)")
	assert.Contains(t, out, "1 *.csv - walk.csv")
	assert.Contains(t, out, "1 *.pcd - scan.pcd")
}

func TestDatasetFilesCmd_Missing(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "dataset", "files", "MVSEC")

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))
}

func TestDatasetIndexAndStatsCmd(t *testing.T) {
	// Given: an IODataset on disk
	root := newTestProject(t)
	dir := writeIODataset(t, root)

	// When: indexing it twice
	out, err := runCmd(t, root, "dataset", "index", "--quiet", "IODataset")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed")
	_, err = runCmd(t, root, "dataset", "index", "-q", "IODataset")
	require.NoError(t, err)

	// Then: the manifest exists and stats report every modality once
	_, err = os.Stat(store.PathFor(dir))
	require.NoError(t, err)

	out, err = runCmd(t, root, "dataset", "stats", "--json", "IODataset")
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "IODataset", info.Dataset)
	assert.Equal(t, 3, info.TotalFiles)
	assert.False(t, info.LastIndexed.IsZero())
	assert.Positive(t, info.ManifestSize)
	mods := map[string]int{}
	for _, m := range info.Modalities {
		mods[m.Modality] = m.Files
	}
	assert.Equal(t, map[string]int{"imu": 1, "lidar": 1, "rgb": 1}, mods)
}

func TestDatasetStatsCmd_Text(t *testing.T) {
	root := newTestProject(t)
	writeIODataset(t, root)
	_, err := runCmd(t, root, "dataset", "index", "-q", "IODataset")
	require.NoError(t, err)

	out, err := runCmd(t, root, "dataset", "stats", "IODataset")

	require.NoError(t, err)
	assert.Contains(t, out, "Dataset: IODataset")
	assert.Contains(t, out, "Files:        3")
	assert.Contains(t, out, "imu")
}

func TestDatasetIndexCmd_MissingDataset(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "dataset", "index", "DSEC")

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileNotFound))
}

func TestDatasetDownloadCmd(t *testing.T) {
	// Given: a server offering a zipped dataset
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	w, err := zw.Create("imu/walk.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(imuCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive.Bytes())
	}))
	defer srv.Close()

	root := newTestProject(t)

	// When: downloading it
	out, err := runCmd(t, root, "dataset", "download", "--url", srv.URL+"/io.zip", "IODataset")

	// Then: the archive is saved and extracted into the dataset directory
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted 1 files")
	_, err = os.Stat(filepath.Join(root, "data", "IODataset.zip"))
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "data", "IODataset", "imu", "walk.csv"))
	require.NoError(t, err)
	assert.Equal(t, imuCSV, string(data))

	// And: a second download is skipped
	out, err = runCmd(t, root, "dataset", "download", "--url", srv.URL+"/io.zip", "IODataset")
	require.NoError(t, err)
	assert.Contains(t, out, "already present")
}

func TestDatasetDownloadCmd_NoURL(t *testing.T) {
	root := newTestProject(t)

	_, err := runCmd(t, root, "dataset", "download", "KITTI")

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestDatasetWatchCmd_StopsOnCancel(t *testing.T) {
	// Given: an IODataset and a context that expires shortly
	root := newTestProject(t)
	dir := writeIODataset(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// When: watching it with polling
	out, err := runCmdContext(t, ctx, root, "dataset", "watch", "--poll", "IODataset")

	// Then: the initial index ran and the watcher stopped cleanly
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 files")
	assert.Contains(t, out, "Watching")
	_, err = os.Stat(store.PathFor(dir))
	assert.NoError(t, err)
}

func TestStatusInfo(t *testing.T) {
	st := &store.Stats{
		Files: 2,
		Bytes: 30,
		ByModality: []store.ModalityStats{
			{Modality: "imu", Files: 1, Bytes: 10},
			{Modality: "lidar", Files: 1, Bytes: 20},
		},
	}

	info := statusInfo("IODataset", "/data/IODataset", "/missing/manifest.db", st)

	assert.Equal(t, 2, info.TotalFiles)
	assert.Equal(t, int64(30), info.TotalBytes)
	assert.Zero(t, info.ManifestSize)
	require.Len(t, info.Modalities, 2)
	assert.Equal(t, ui.ModalityStat{Modality: "lidar", Files: 1, Bytes: 20}, info.Modalities[1])
}
