// Package lidar reads and writes point clouds in PCD, PLY, LAS and KITTI
// .bin layouts.
package lidar

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

var (
	extensions = []string{".pcd", ".ply", ".las", ".laz", ".bin"}

	// ColumnsXYZ and ColumnsXYZI name the bundle columns of a cloud without
	// and with intensity.
	ColumnsXYZ  = []string{"X", "Y", "Z"}
	ColumnsXYZI = []string{"X", "Y", "Z", "I"}
)

// ctxStride is how many points are decoded between context checks.
const ctxStride = 1 << 16

// Codec implements modality.Codec for LiDAR point clouds.
type Codec struct{}

// New creates a LiDAR codec.
func New() *Codec {
	return &Codec{}
}

func init() {
	modality.Default.Register(modality.LiDAR, New())
}

// Read decodes a point cloud into an N x 3 or N x 4 bundle.
func (c *Codec) Read(ctx context.Context, path string) (*modality.Bundle, error) {
	if err := modality.CheckExtension(path, extensions); err != nil {
		return nil, err
	}
	ext := modality.FileExtension(path)
	if ext == ".laz" {
		return nil, lazUnsupported(path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return nil, serrors.IOError("cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()
	r := bufio.NewReaderSize(f, 1<<20)

	var points [][]float64
	switch ext {
	case ".pcd":
		points, err = readPCD(ctx, r)
	case ".ply":
		points, err = readPLY(ctx, r)
	case ".las":
		points, err = readLAS(ctx, f)
	case ".bin":
		points, err = readBin(ctx, r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read LiDAR file %s: %w", path, err)
	}

	b := &modality.Bundle{Modality: modality.LiDAR, Data: points}
	if _, cols := b.Shape(); cols == 4 {
		b.Columns = append([]string(nil), ColumnsXYZI...)
	} else {
		b.Columns = append([]string(nil), ColumnsXYZ...)
	}
	slog.Info("LiDAR point cloud read", slog.String("path", path), slog.Int("points", len(points)))
	return b, nil
}

// Write encodes a bundle with at least three columns. A fourth column is
// stored as intensity where the format allows it.
func (c *Codec) Write(ctx context.Context, b *modality.Bundle, path string) error {
	if err := modality.CheckExtension(path, extensions); err != nil {
		return err
	}
	ext := modality.FileExtension(path)
	if ext == ".laz" {
		return lazUnsupported(path)
	}
	if b == nil || b.Data == nil {
		return serrors.New(serrors.ErrCodeInvalidInput, "data bundle must contain a point cloud", nil)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if _, cols := b.Shape(); len(b.Data) > 0 && cols < 3 {
		return serrors.Newf(serrors.ErrCodeShapeMismatch,
			"point cloud needs at least 3 columns (x, y, z), got %d", cols)
	}
	if err := modality.EnsureParent(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+path, err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	switch ext {
	case ".pcd":
		err = writePCD(ctx, w, b.Data)
	case ".ply":
		err = writePLY(ctx, w, b.Data)
	case ".las":
		err = writeLAS(ctx, w, b.Data)
	case ".bin":
		err = writeBin(ctx, w, b.Data)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "failed to write LiDAR file "+path, err)
	}

	slog.Info("LiDAR point cloud saved", slog.String("path", path), slog.Int("points", len(b.Data)))
	return nil
}

func lazUnsupported(path string) error {
	return serrors.New(serrors.ErrCodeUnsupportedFormat, "compressed LAZ point clouds are not supported: "+path, nil).
		WithSuggestion("decompress to .las first, e.g. with laszip")
}

func corrupt(format string, args ...any) error {
	return serrors.Newf(serrors.ErrCodeFileCorrupt, format, args...)
}

func hasIntensity(points [][]float64) bool {
	return len(points) > 0 && len(points[0]) >= 4
}

func checkCtx(ctx context.Context, i int) error {
	if i%ctxStride == 0 {
		return ctx.Err()
	}
	return nil
}

// readBin decodes KITTI velodyne scans: little-endian float32 x, y, z, intensity.
func readBin(ctx context.Context, r io.Reader) ([][]float64, error) {
	var (
		rec    [16]byte
		points [][]float64
	)
	for i := 0; ; i++ {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, rec[:])
		if err == io.EOF {
			return points, nil
		}
		if err == io.ErrUnexpectedEOF {
			return nil, corrupt("truncated .bin record after %d points (%d trailing bytes)", i, n)
		}
		if err != nil {
			return nil, serrors.IOError("cannot read .bin point data", err)
		}
		p := make([]float64, 4)
		for j := range p {
			p[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[j*4:])))
		}
		points = append(points, p)
	}
}

func writeBin(ctx context.Context, w io.Writer, points [][]float64) error {
	var rec [16]byte
	for i, p := range points {
		if err := checkCtx(ctx, i); err != nil {
			return err
		}
		for j := range 4 {
			v := 0.0
			if j < len(p) {
				v = p[j]
			}
			binary.LittleEndian.PutUint32(rec[j*4:], math.Float32bits(float32(v)))
		}
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}
