// Package modality defines the unified sensor data bundle and the registry
// that maps file extensions to modality codecs.
package modality

import (
	"context"
	"fmt"
	"image"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// Modality names a sensor type.
type Modality string

const (
	DVS   Modality = "dvs"
	LiDAR Modality = "lidar"
	IMU   Modality = "imu"
	RGB   Modality = "rgb"
)

// All lists modalities in resolution order. A shared extension such as .csv
// resolves to the first modality that declares it.
var All = []Modality{DVS, LiDAR, IMU, RGB}

// Parse converts a case-insensitive name into a Modality.
func Parse(s string) (Modality, error) {
	m := Modality(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if m == known {
			return m, nil
		}
	}
	return "", serrors.New(serrors.ErrCodeUnknownModality,
		fmt.Sprintf("unknown modality %q (use dvs, lidar, imu or rgb)", s), nil)
}

// Op is the direction of a codec operation.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// ParseOp validates an operation name.
func ParseOp(s string) (Op, error) {
	switch Op(strings.ToLower(s)) {
	case OpRead:
		return OpRead, nil
	case OpWrite:
		return OpWrite, nil
	}
	return "", serrors.New(serrors.ErrCodeInvalidInput,
		fmt.Sprintf("operation %q is invalid, use 'read' or 'write'", s), nil)
}

// Bundle is the representation every codec reads into and writes from.
type Bundle struct {
	Modality Modality
	// Data is a row-major N x C sample matrix. Nil for RGB.
	Data [][]float64
	// Timestamps holds one value per row when the source provides time.
	Timestamps []float64
	Columns    []string
	// Image holds RGB pixels. Nil for every other modality.
	Image *image.NRGBA
}

// Shape returns rows and columns of Data, or height and width of Image for
// an image bundle.
func (b *Bundle) Shape() (rows, cols int) {
	if b.Image != nil && b.Data == nil {
		r := b.Image.Bounds()
		return r.Dy(), r.Dx()
	}
	if len(b.Data) == 0 {
		return 0, 0
	}
	return len(b.Data), len(b.Data[0])
}

// Validate checks that Data is rectangular and that Columns and Timestamps,
// when present, agree with it.
func (b *Bundle) Validate() error {
	if b.Image != nil && b.Data == nil {
		return nil
	}
	rows, cols := b.Shape()
	for i, row := range b.Data {
		if len(row) != cols {
			return serrors.New(serrors.ErrCodeShapeMismatch,
				fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), cols), nil)
		}
	}
	if len(b.Columns) > 0 && rows > 0 && len(b.Columns) != cols {
		return serrors.New(serrors.ErrCodeShapeMismatch,
			fmt.Sprintf("%d column names for %d columns", len(b.Columns), cols), nil)
	}
	if b.Timestamps != nil && len(b.Timestamps) != rows {
		return serrors.New(serrors.ErrCodeShapeMismatch,
			fmt.Sprintf("%d timestamps for %d rows", len(b.Timestamps), rows), nil)
	}
	return nil
}

// Clone returns a deep copy of b.
func (b *Bundle) Clone() *Bundle {
	out := &Bundle{Modality: b.Modality}
	if b.Data != nil {
		out.Data = make([][]float64, len(b.Data))
		for i, row := range b.Data {
			out.Data[i] = append([]float64(nil), row...)
		}
	}
	if b.Timestamps != nil {
		out.Timestamps = append([]float64(nil), b.Timestamps...)
	}
	if b.Columns != nil {
		out.Columns = append([]string(nil), b.Columns...)
	}
	if b.Image != nil {
		img := *b.Image
		img.Pix = append([]uint8(nil), b.Image.Pix...)
		out.Image = &img
	}
	return out
}

// Column returns column j of Data.
func (b *Bundle) Column(j int) []float64 {
	out := make([]float64, len(b.Data))
	for i, row := range b.Data {
		if j < len(row) {
			out[i] = row[j]
		}
	}
	return out
}

// Reader decodes a file into a Bundle.
type Reader interface {
	Read(ctx context.Context, path string) (*Bundle, error)
}

// Writer encodes a Bundle to a file.
type Writer interface {
	Write(ctx context.Context, b *Bundle, path string) error
}

// Codec reads and writes one modality.
type Codec interface {
	Reader
	Writer
}
