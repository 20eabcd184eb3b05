package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusInfo_JSONSerialization(t *testing.T) {
	// Given: populated status info
	info := StatusInfo{
		Dataset:     "IODataset",
		TotalFiles:  4,
		TotalBytes:  4096,
		LastIndexed: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Modalities:  []ModalityStat{{Modality: "lidar", Files: 1, Bytes: 1024}},
	}

	// When: serializing to JSON
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: JSON uses snake_case keys
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "IODataset", parsed["dataset"])
	assert.Equal(t, float64(4), parsed["total_files"])
	mods := parsed["modalities"].([]any)
	assert.Equal(t, "lidar", mods[0].(map[string]any)["modality"])
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: status renderer without colour
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	err := r.Render(StatusInfo{
		Dataset:      "KITTI",
		Root:         "/data/KITTI",
		ManifestPath: "/data/KITTI/.synapsense/manifest.db",
		TotalFiles:   2,
		TotalBytes:   3 * 1024 * 1024,
		LastIndexed:  time.Now().Add(-2 * time.Hour),
		Modalities: []ModalityStat{
			{Modality: "imu", Files: 1, Bytes: 1024},
			{Modality: "lidar", Files: 1, Bytes: 3*1024*1024 - 1024},
		},
	})

	// Then: key facts are shown
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Dataset: KITTI")
	assert.Contains(t, out, "3.0 MB")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "lidar")
	assert.Contains(t, out, "manifest.db")
}

func TestStatusRenderer_NeverIndexed(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewStatusRenderer(buf, true).Render(StatusInfo{Dataset: "DSEC"}))

	assert.Contains(t, buf.String(), "Last indexed: never")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewStatusRenderer(buf, true).RenderJSON(StatusInfo{Dataset: "MVSEC"}))

	assert.Contains(t, buf.String(), `"dataset": "MVSEC"`)
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		in   time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-1 * time.Minute), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-1 * time.Hour), "1 hour ago"},
		{now.Add(-26 * time.Hour), "1 day ago"},
		{time.Date(2020, 3, 4, 5, 6, 0, 0, time.Local), "2020-03-04 05:06"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTime(tt.in))
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536 * 1024, "1.5 MB"},
		{2 * 1024 * 1024 * 1024, "2.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}
