// Package files measures, compresses and cleans directories of run
// artefacts such as logs and checkpoints.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// HumanReadableSize formats n bytes as bytes, KB, MB or GB with precision
// decimal places.
func HumanReadableSize(n float64, precision int) string {
	const (
		kb = 1024.0
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%.*f bytes", precision, n)
	case n < mb:
		return fmt.Sprintf("%.*f KB", precision, n/kb)
	case n < gb:
		return fmt.Sprintf("%.*f MB", precision, n/mb)
	default:
		return fmt.Sprintf("%.*f GB", precision, n/gb)
	}
}

// DirSize returns the total size of regular files under dir. A missing
// dir has size zero.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeReadFailed, "cannot measure "+dir, err)
	}
	return total, nil
}

// FileSize returns the size of a regular file.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, serrors.New(serrors.ErrCodeFileNotFound, "cannot stat "+path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, serrors.New(serrors.ErrCodeInvalidPath, path+" is not a regular file", nil)
	}
	return info.Size(), nil
}
