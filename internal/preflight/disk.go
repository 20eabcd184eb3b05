package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// MinDiskSpaceBytes is the minimum required free disk space (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// existingAncestor returns path or its nearest existing parent so a data root
// that has not been created yet can still be measured.
func existingAncestor(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingAncestor(path), &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// EnsureSpace fails with ERR_203 when fewer than need bytes (plus the
// minimum reserve) are free under path.
func EnsureSpace(path string, need uint64) error {
	free, err := FreeBytes(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeReadFailed, "failed to check disk space for "+path, err)
	}
	if free < need+MinDiskSpaceBytes {
		return serrors.Newf(serrors.ErrCodeDiskFull, "%s free under %s, need %s plus %s reserve",
			formatBytes(free), path, formatBytes(need), formatBytes(MinDiskSpaceBytes)).
			WithSuggestion("free up disk space or point paths.data_root elsewhere")
	}
	return nil
}

// CheckDiskSpace checks if there's sufficient disk space at the given path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	available, err := FreeBytes(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(available))
	if available < MinDiskSpaceBytes {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
