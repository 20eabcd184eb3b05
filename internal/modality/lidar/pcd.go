package lidar

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

type pcdField struct {
	name  string
	kind  scalarKind
	count int
}

type pcdHeader struct {
	fields []pcdField
	width  int
	height int
	points int
	data   string
}

// columns returns the field indices of x, y, z and intensity (-1 when absent).
func (h *pcdHeader) columns() (xyz [3]int, intensity int, err error) {
	xyz = [3]int{-1, -1, -1}
	intensity = -1
	for i, f := range h.fields {
		switch strings.ToLower(f.name) {
		case "x":
			xyz[0] = i
		case "y":
			xyz[1] = i
		case "z":
			xyz[2] = i
		case "intensity", "i":
			intensity = i
		}
	}
	for _, i := range xyz {
		if i < 0 {
			return xyz, intensity, corrupt("PCD file has no x, y, z fields")
		}
	}
	return xyz, intensity, nil
}

func readPCDHeader(r *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{}
	var sizes, counts []int
	var types []string
	for h.data == "" {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, corrupt("PCD header ended before DATA")
		}
		err = nil
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		key, vals := strings.ToUpper(parts[0]), parts[1:]
		switch key {
		case "FIELDS", "COLUMNS":
			h.fields = make([]pcdField, len(vals))
			for i, v := range vals {
				h.fields[i] = pcdField{name: v, count: 1}
			}
		case "SIZE":
			sizes, err = atoiAll(vals)
		case "TYPE":
			types = vals
		case "COUNT":
			counts, err = atoiAll(vals)
		case "WIDTH":
			h.width, err = atoiOne(vals)
		case "HEIGHT":
			h.height, err = atoiOne(vals)
		case "POINTS":
			h.points, err = atoiOne(vals)
		case "DATA":
			if len(vals) == 0 {
				return nil, corrupt("PCD DATA line has no format")
			}
			h.data = strings.ToLower(vals[0])
		}
		if err != nil {
			return nil, corrupt("malformed PCD header line %q", line)
		}
	}

	if len(h.fields) == 0 || len(sizes) != len(h.fields) || len(types) != len(h.fields) {
		return nil, corrupt("PCD header FIELDS, SIZE and TYPE disagree")
	}
	if counts != nil && len(counts) != len(h.fields) {
		return nil, corrupt("PCD header COUNT disagrees with FIELDS")
	}
	for i := range h.fields {
		h.fields[i].kind = scalarKind{typ: strings.ToUpper(types[i])[0], size: sizes[i]}
		if !h.fields[i].kind.valid() {
			return nil, corrupt("unsupported PCD field type %s%d", types[i], sizes[i])
		}
		if counts != nil {
			if counts[i] < 1 {
				return nil, corrupt("PCD field %s has COUNT %d", h.fields[i].name, counts[i])
			}
			h.fields[i].count = counts[i]
		}
	}
	if h.width < 0 || h.height < 0 || h.points < 0 {
		return nil, corrupt("PCD header has a negative WIDTH, HEIGHT or POINTS")
	}
	if h.points == 0 {
		h.points = h.width * max(h.height, 1)
	}
	return h, nil
}

func readPCD(ctx context.Context, r *bufio.Reader) ([][]float64, error) {
	h, err := readPCDHeader(r)
	if err != nil {
		return nil, err
	}
	xyz, inten, err := h.columns()
	if err != nil {
		return nil, err
	}
	want := []int{xyz[0], xyz[1], xyz[2]}
	if inten >= 0 {
		want = append(want, inten)
	}

	switch h.data {
	case "ascii":
		return readPCDASCII(ctx, r, h, want)
	case "binary":
		return readPCDBinary(ctx, r, h, want)
	default:
		return nil, serrors.Newf(serrors.ErrCodeUnsupportedFormat, "PCD DATA %s is not supported", h.data)
	}
}

func readPCDASCII(ctx context.Context, r *bufio.Reader, h *pcdHeader, want []int) ([][]float64, error) {
	// token offset of each field, honouring COUNT
	offsets := make([]int, len(h.fields))
	tokens := 0
	for i, f := range h.fields {
		offsets[i] = tokens
		tokens += f.count
	}

	points := make([][]float64, 0, capHint(h.points))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for i := 0; sc.Scan() && len(points) < h.points; i++ {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		vals := strings.Fields(sc.Text())
		if len(vals) == 0 {
			continue
		}
		if len(vals) < tokens {
			return nil, corrupt("PCD point %d has %d values, expected %d", len(points), len(vals), tokens)
		}
		p := make([]float64, len(want))
		for j, field := range want {
			v, err := strconv.ParseFloat(vals[offsets[field]], 64)
			if err != nil {
				return nil, corrupt("non-numeric PCD value %q", vals[offsets[field]])
			}
			p[j] = v
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, serrors.IOError("cannot read PCD point data", err)
	}
	if len(points) < h.points {
		return nil, corrupt("PCD declares %d points but contains %d", h.points, len(points))
	}
	return points, nil
}

func readPCDBinary(ctx context.Context, r io.Reader, h *pcdHeader, want []int) ([][]float64, error) {
	offsets := make([]int, len(h.fields))
	stride := 0
	for i, f := range h.fields {
		offsets[i] = stride
		stride += f.kind.size * f.count
	}

	rec := make([]byte, stride)
	points := make([][]float64, 0, capHint(h.points))
	for i := range h.points {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, corrupt("PCD binary data truncated at point %d of %d", i, h.points)
		}
		p := make([]float64, len(want))
		for j, field := range want {
			p[j] = h.fields[field].kind.decode(rec[offsets[field]:])
		}
		points = append(points, p)
	}
	return points, nil
}

// maxPrealloc bounds the capacity reserved from a header's point count.
// Larger clouds grow by append as their data is actually read.
const maxPrealloc = 1 << 16

func capHint(n int) int {
	return min(max(n, 0), maxPrealloc)
}

// writePCD emits a binary PCD v0.7 file with float32 fields.
func writePCD(ctx context.Context, w io.Writer, points [][]float64) error {
	fields, sizes, types, counts := "x y z", "4 4 4", "F F F", "1 1 1"
	cols := 3
	if hasIntensity(points) {
		fields, sizes, types, counts = fields+" intensity", sizes+" 4", types+" F", counts+" 1"
		cols = 4
	}
	n := len(points)
	if _, err := fmt.Fprintf(w,
		"# .PCD v0.7 - Point Cloud Data file format\nVERSION 0.7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n"+
			"WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA binary\n",
		fields, sizes, types, counts, n, n); err != nil {
		return err
	}

	rec := make([]byte, 4*cols)
	for i, p := range points {
		if err := checkCtx(ctx, i); err != nil {
			return err
		}
		for j := range cols {
			binary.LittleEndian.PutUint32(rec[j*4:], math.Float32bits(float32(p[j])))
		}
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func atoiAll(vals []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func atoiOne(vals []string) (int, error) {
	if len(vals) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.Atoi(vals[0])
}
