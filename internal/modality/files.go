package modality

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// FileExtension returns the lower-cased final suffix of path, including the dot.
func FileExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// ValidateExtension reports whether the extension of path is in exts,
// ignoring case.
func ValidateExtension(path string, exts []string) bool {
	ext := FileExtension(path)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// CheckExtension returns a validation error naming the extension when path
// is not in exts.
func CheckExtension(path string, exts []string) error {
	if ValidateExtension(path, exts) {
		return nil
	}
	ext := FileExtension(path)
	if ext == "" {
		ext = "(none)"
	}
	return serrors.New(serrors.ErrCodeUnsupportedExtension,
		fmt.Sprintf("unsupported file extension %s: %s", ext, path), nil).
		WithDetail("path", path).
		WithSuggestion("supported: " + strings.Join(exts, ", "))
}

// FileSize returns the size of path as "N Bytes", "x.xx KB", "x.xx MB" or "x.xx GB".
func FileSize(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", serrors.New(serrors.ErrCodeFileNotFound, "cannot stat "+path, err)
	}
	return formatSize(info.Size()), nil
}

func formatSize(n int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%d Bytes", n)
	case n < mb:
		return fmt.Sprintf("%.2f KB", float64(n)/kb)
	case n < gb:
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
}

// IsValidFile reports whether path is an existing regular file whose
// extension is in exts.
func IsValidFile(path string, exts []string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return ValidateExtension(path, exts)
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create directory "+dir, err)
	}
	return nil
}

// EnsureParent creates the directory that will hold path.
func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// ListFilesWithExtensions walks dir recursively and returns matching regular
// files in lexical order.
func ListFilesWithExtensions(dir string, exts []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && ValidateExtension(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeReadFailed, "cannot list "+dir, err)
	}
	sort.Strings(files)
	return files, nil
}
