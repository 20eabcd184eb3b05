package lidar

import (
	"encoding/binary"
	"math"
)

// scalarKind is a numeric field type: 'F' float, 'I' signed, 'U' unsigned.
type scalarKind struct {
	typ  byte
	size int
}

func (k scalarKind) valid() bool {
	switch k.typ {
	case 'F':
		return k.size == 4 || k.size == 8
	case 'I', 'U':
		return k.size == 1 || k.size == 2 || k.size == 4 || k.size == 8
	}
	return false
}

// decode reads a little-endian value of kind k from b.
func (k scalarKind) decode(b []byte) float64 {
	switch k.typ {
	case 'F':
		if k.size == 4 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case 'I':
		switch k.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(b)))
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(b)))
		default:
			return float64(int64(binary.LittleEndian.Uint64(b)))
		}
	default:
		switch k.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(binary.LittleEndian.Uint16(b))
		case 4:
			return float64(binary.LittleEndian.Uint32(b))
		default:
			return float64(binary.LittleEndian.Uint64(b))
		}
	}
}
