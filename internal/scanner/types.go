// Package scanner walks dataset directories and classifies the files it
// finds by sensor modality.
package scanner

import (
	"time"

	"github.com/synapsense/synapsense/internal/ignore"
	"github.com/synapsense/synapsense/internal/modality"
)

// FileInfo describes a discovered data file.
type FileInfo struct {
	Path      string            // Relative to the scan root, slash separated
	AbsPath   string            // Absolute path
	Size      int64             // File size in bytes
	ModTime   time.Time         // Last modification time
	Modality  modality.Modality // Resolved from the extension
	Extension string            // Lower case, with the leading dot
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// ExcludePatterns are extra directory or file patterns to skip.
	// Supported forms: "name", "dir/**", "**/name", "*.ext", "prefix*".
	ExcludePatterns []string

	// Ignore holds the rules of the root's .synapseignore, if any.
	Ignore *ignore.Matcher

	// Modalities restricts results to these modalities (empty = all).
	Modalities []modality.Modality

	// DirModalities maps a relative directory (slash separated) to the
	// modality its files belong to. Files below such a directory take that
	// modality when it supports their extension, so a .csv under "imu" is
	// IMU rather than DVS.
	DirModalities map[string]modality.Modality

	// Op selects which extension lists classify files (default read).
	Op modality.Op

	// Workers is the number of classifying goroutines (0 = NumCPU).
	Workers int

	// FollowSymlinks includes symlinked files (default: false).
	FollowSymlinks bool

	// ProgressFunc is called after each classified file with the running
	// count of files seen and matched. It may be called from several
	// goroutines at once.
	ProgressFunc func(seen, matched int)
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// defaultExcludeDirs are never descended into.
var defaultExcludeDirs = []string{
	"**/.synapsense",
	"**/.git",
	"**/__pycache__",
	"**/.ipynb_checkpoints",
}

// defaultExcludeFiles are never reported.
var defaultExcludeFiles = []string{
	".DS_Store",
	"Thumbs.db",
	"*.tmp",
	"*.lock",
}
