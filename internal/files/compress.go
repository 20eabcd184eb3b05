package files

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// CompressFile deflates path into <destDir>/<stem>.zip and removes the
// original. It returns the archive path.
func CompressFile(path, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+destDir, err)
	}
	base := filepath.Base(path)
	zipPath := filepath.Join(destDir, strings.TrimSuffix(base, filepath.Ext(base))+".zip")

	if err := writeZip(path, zipPath); err != nil {
		_ = os.Remove(zipPath)
		return "", serrors.New(serrors.ErrCodeWriteFailed, "cannot compress "+path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", serrors.New(serrors.ErrCodeWriteFailed, "cannot remove "+path+" after compression", err)
	}
	slog.Info("Compressed file", slog.String("file", base), slog.String("archive", filepath.Base(zipPath)))
	return zipPath, nil
}

func writeZip(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	hdr, err := zip.FileInfoHeader(info)
	if err == nil {
		hdr.Name = filepath.Base(src)
		hdr.Method = zip.Deflate
		var w io.Writer
		if w, err = zw.CreateHeader(hdr); err == nil {
			_, err = io.Copy(w, in)
		}
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
