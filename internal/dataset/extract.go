package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// ExtractZip unpacks archive into dest and returns the extracted file paths.
// Entries resolving outside dest are rejected.
func ExtractZip(ctx context.Context, archive, dest string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "cannot open archive "+archive, err)
	}
	defer func() { _ = zr.Close() }()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeInvalidPath, "invalid destination "+dest, err)
	}

	var out []string
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		target, err := safeJoin(root, zf.Name)
		if err != nil {
			return out, err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return out, serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+target, err)
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			continue
		}
		if err := extractFile(zf, target); err != nil {
			return out, err
		}
		out = append(out, target)
	}
	return out, nil
}

// safeJoin resolves name under root, rejecting absolute paths and "..".
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if filepath.IsAbs(filepath.FromSlash(name)) || (target != root && !strings.HasPrefix(target, root+string(filepath.Separator))) {
		return "", serrors.New(serrors.ErrCodeInvalidPath, "archive entry escapes destination: "+name, nil)
	}
	return target, nil
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+filepath.Dir(target), err)
	}
	rc, err := zf.Open()
	if err != nil {
		return serrors.New(serrors.ErrCodeFileCorrupt, "cannot read archive entry "+zf.Name, err)
	}
	defer func() { _ = rc.Close() }()

	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+target, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return serrors.New(serrors.ErrCodeFileCorrupt, "cannot extract "+zf.Name, err)
	}
	if err := f.Close(); err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot close "+target, err)
	}
	return nil
}
