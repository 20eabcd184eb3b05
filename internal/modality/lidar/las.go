package lidar

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"
	"time"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

const (
	lasHeaderSize = 227
	lasFormat3Len = 34
	lasScale      = 0.001
)

type lasHeader struct {
	pointOffset  uint32
	format       uint8
	recordLength uint16
	count        uint32
	scale        [3]float64
	offset       [3]float64
}

func parseLASHeader(b []byte) (*lasHeader, error) {
	if len(b) < lasHeaderSize || string(b[:4]) != "LASF" {
		return nil, corrupt("not a LAS file")
	}
	le := binary.LittleEndian
	h := &lasHeader{
		pointOffset:  le.Uint32(b[96:]),
		format:       b[104],
		recordLength: le.Uint16(b[105:]),
		count:        le.Uint32(b[107:]),
	}
	for i := range 3 {
		h.scale[i] = math.Float64frombits(le.Uint64(b[131+8*i:]))
		h.offset[i] = math.Float64frombits(le.Uint64(b[155+8*i:]))
	}
	if h.format > 10 || h.recordLength < 20 {
		return nil, corrupt("unsupported LAS point format %d (record length %d)", h.format, h.recordLength)
	}
	// formats 6-10 carry 64-bit point counts elsewhere and a different layout
	if h.format > 5 {
		return nil, serrors.Newf(serrors.ErrCodeUnsupportedFormat, "LAS point format %d is not supported", h.format)
	}
	return h, nil
}

// readLAS decodes LAS point formats 0-5 into X, Y, Z with scale and offset applied.
func readLAS(ctx context.Context, rs io.ReadSeeker) ([][]float64, error) {
	hdr := make([]byte, lasHeaderSize)
	if _, err := io.ReadFull(rs, hdr); err != nil {
		return nil, corrupt("LAS header truncated")
	}
	h, err := parseLASHeader(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(int64(h.pointOffset), io.SeekStart); err != nil {
		return nil, serrors.IOError("cannot seek to LAS point data", err)
	}

	r := bufio.NewReaderSize(rs, 1<<20)
	rec := make([]byte, h.recordLength)
	points := make([][]float64, 0, capHint(int(h.count)))
	le := binary.LittleEndian
	for i := range int(h.count) {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, corrupt("LAS point data truncated at point %d of %d", i, h.count)
		}
		points = append(points, []float64{
			float64(int32(le.Uint32(rec[0:])))*h.scale[0] + h.offset[0],
			float64(int32(le.Uint32(rec[4:])))*h.scale[1] + h.offset[1],
			float64(int32(le.Uint32(rec[8:])))*h.scale[2] + h.offset[2],
		})
	}
	return points, nil
}

// writeLAS emits LAS 1.2 point format 3. Coordinates are stored with
// millimetre scale relative to the cloud minimum; a fourth column becomes
// the 16-bit intensity.
func writeLAS(ctx context.Context, w io.Writer, points [][]float64) error {
	minB := [3]float64{}
	maxB := [3]float64{}
	for i, p := range points {
		for j := range 3 {
			if i == 0 || p[j] < minB[j] {
				minB[j] = p[j]
			}
			if i == 0 || p[j] > maxB[j] {
				maxB[j] = p[j]
			}
		}
	}

	le := binary.LittleEndian
	h := make([]byte, lasHeaderSize)
	copy(h[0:], "LASF")
	h[24], h[25] = 1, 2
	copy(h[26:58], "synapsense")
	copy(h[58:90], "synapsense")
	now := time.Now().UTC()
	le.PutUint16(h[90:], uint16(now.YearDay()))
	le.PutUint16(h[92:], uint16(now.Year()))
	le.PutUint16(h[94:], lasHeaderSize)
	le.PutUint32(h[96:], lasHeaderSize)
	h[104] = 3
	le.PutUint16(h[105:], lasFormat3Len)
	le.PutUint32(h[107:], uint32(len(points)))
	le.PutUint32(h[111:], uint32(len(points))) // all first returns
	for j := range 3 {
		le.PutUint64(h[131+8*j:], math.Float64bits(lasScale))
		le.PutUint64(h[155+8*j:], math.Float64bits(minB[j]))
		le.PutUint64(h[179+16*j:], math.Float64bits(maxB[j]))
		le.PutUint64(h[187+16*j:], math.Float64bits(minB[j]))
	}
	if _, err := w.Write(h); err != nil {
		return err
	}

	rec := make([]byte, lasFormat3Len)
	for i, p := range points {
		if err := checkCtx(ctx, i); err != nil {
			return err
		}
		clear(rec)
		for j := range 3 {
			le.PutUint32(rec[4*j:], uint32(int32(math.Round((p[j]-minB[j])/lasScale))))
		}
		if len(p) >= 4 {
			le.PutUint16(rec[12:], uint16(math.Max(0, math.Min(math.MaxUint16, math.Round(p[3])))))
		}
		rec[14] = 0x09 // return 1 of 1
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
