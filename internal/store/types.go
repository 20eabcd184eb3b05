// Package store persists the per-dataset file manifest in SQLite.
package store

import "time"

// State keys for the manifest state table.
const (
	// StateKeyRoot stores the absolute dataset root the manifest describes.
	StateKeyRoot = "dataset_root"
	// StateKeyLastScan stores when the last full scan finished (RFC3339).
	StateKeyLastScan = "last_scan"
)

// ManifestDir and ManifestFile locate the manifest inside a dataset root.
const (
	ManifestDir  = ".synapsense"
	ManifestFile = "manifest.db"
)

// Entry is one indexed file.
type Entry struct {
	// Path is relative to the dataset root, slash separated.
	Path      string
	Modality  string
	Extension string
	Size      int64
	ModTime   time.Time
	IndexedAt time.Time
}

// Changed reports whether size or modification time differ from other.
func (e Entry) Changed(size int64, modTime time.Time) bool {
	return e.Size != size || !e.ModTime.Equal(modTime)
}

// ModalityStats aggregates entries of one modality.
type ModalityStats struct {
	Modality string
	Files    int
	Bytes    int64
}

// Stats summarises the manifest.
type Stats struct {
	Files       int
	Bytes       int64
	LastIndexed time.Time
	// ByModality is ordered by modality name.
	ByModality []ModalityStats
}
