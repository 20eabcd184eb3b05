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

var plyTypes = map[string]scalarKind{
	"char": {'I', 1}, "int8": {'I', 1},
	"uchar": {'U', 1}, "uint8": {'U', 1},
	"short": {'I', 2}, "int16": {'I', 2},
	"ushort": {'U', 2}, "uint16": {'U', 2},
	"int": {'I', 4}, "int32": {'I', 4},
	"uint": {'U', 4}, "uint32": {'U', 4},
	"float": {'F', 4}, "float32": {'F', 4},
	"double": {'F', 8}, "float64": {'F', 8},
}

type plyElement struct {
	name  string
	count int
	props []pcdField
	list  bool
}

type plyHeader struct {
	format   string
	elements []plyElement
}

func readPLYHeader(r *bufio.Reader) (*plyHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return nil, corrupt("not a PLY file")
	}

	h := &plyHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, corrupt("PLY header ended before end_header")
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "format":
			if len(parts) < 2 {
				return nil, corrupt("malformed PLY format line")
			}
			h.format = parts[1]
		case "element":
			if len(parts) < 3 {
				return nil, corrupt("malformed PLY element line %q", strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(parts[2])
			if err != nil || n < 0 {
				return nil, corrupt("malformed PLY element count %q", parts[2])
			}
			h.elements = append(h.elements, plyElement{name: parts[1], count: n})
		case "property":
			if len(h.elements) == 0 || len(parts) < 3 {
				return nil, corrupt("PLY property outside an element")
			}
			el := &h.elements[len(h.elements)-1]
			if parts[1] == "list" {
				el.list = true
				continue
			}
			kind, ok := plyTypes[parts[1]]
			if !ok {
				return nil, corrupt("unknown PLY property type %s", parts[1])
			}
			el.props = append(el.props, pcdField{name: parts[2], kind: kind, count: 1})
		case "end_header":
			return h, nil
		}
	}
}

func readPLY(ctx context.Context, r *bufio.Reader) ([][]float64, error) {
	h, err := readPLYHeader(r)
	if err != nil {
		return nil, err
	}

	vi := -1
	for i, el := range h.elements {
		if el.name == "vertex" {
			vi = i
			break
		}
	}
	if vi < 0 {
		return nil, corrupt("PLY file has no vertex element")
	}
	vertex := h.elements[vi]
	ph := &pcdHeader{fields: vertex.props}
	xyz, inten, err := ph.columns()
	if err != nil {
		return nil, err
	}
	want := []int{xyz[0], xyz[1], xyz[2]}
	if inten >= 0 {
		want = append(want, inten)
	}

	switch h.format {
	case "ascii":
		// skip the lines of any element declared before the vertices
		skip := 0
		for _, el := range h.elements[:vi] {
			skip += el.count
		}
		for range skip {
			if _, err := r.ReadString('\n'); err != nil {
				return nil, corrupt("PLY body truncated")
			}
		}
		ph.points = vertex.count
		return readPCDASCII(ctx, r, ph, want)
	case "binary_little_endian":
		if vi != 0 || vertex.list {
			return nil, serrors.New(serrors.ErrCodeUnsupportedFormat,
				"binary PLY files must start with a vertex element of scalar properties", nil)
		}
		ph.points = vertex.count
		return readPCDBinary(ctx, r, ph, want)
	default:
		return nil, serrors.Newf(serrors.ErrCodeUnsupportedFormat, "PLY format %s is not supported", h.format)
	}
}

// writePLY emits a binary little-endian PLY with float vertex properties.
func writePLY(ctx context.Context, w io.Writer, points [][]float64) error {
	cols := 3
	props := "property float x\nproperty float y\nproperty float z\n"
	if hasIntensity(points) {
		cols = 4
		props += "property float intensity\n"
	}
	if _, err := fmt.Fprintf(w, "ply\nformat binary_little_endian 1.0\ncomment synapsense\nelement vertex %d\n%send_header\n",
		len(points), props); err != nil {
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
