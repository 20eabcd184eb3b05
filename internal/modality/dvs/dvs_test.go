package dvs

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

func sampleBundle(n int) *modality.Bundle {
	data := make([][]float64, n)
	for i := range data {
		data[i] = []float64{float64(1000 + i*10), float64(i % 640), float64(i % 480), float64(i % 2)}
	}
	return &modality.Bundle{Modality: modality.DVS, Data: data, Columns: Columns}
}

func TestRead_CSV_ReordersAndLowercasesColumns(t *testing.T) {
	// Given: a CSV with columns out of order, upper case, plus an extra one
	path := filepath.Join(t.TempDir(), "events.csv")
	content := "P,X,extra,T,Y\n1,10,9,0.5,20\n0,11,9,0.6,21\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: reading it
	b, err := New(DefaultOptions()).Read(context.Background(), path)

	// Then: data is t,x,y,p and timestamps mirror t
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 10, 20, 1}, {0.6, 11, 21, 0}}, b.Data)
	assert.Equal(t, []float64{0.5, 0.6}, b.Timestamps)
	assert.Equal(t, []string{"t", "x", "y", "p"}, b.Columns)
	assert.Equal(t, modality.DVS, b.Modality)
}

func TestRead_TXT_WhitespaceSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	require.NoError(t, os.WriteFile(path, []byte("t x y p\n1   2 3 1\n4\t5\t6\t0\n"), 0o644))

	b, err := New(DefaultOptions()).Read(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 3, 1}, {4, 5, 6, 0}}, b.Data)
}

func TestRead_MissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("t,x,y\n1,2,3\n"), 0o644))

	_, err := New(DefaultOptions()).Read(context.Background(), path)

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeMissingColumns))
	assert.Contains(t, err.Error(), "missing DVS columns: t, x, y, p")
}

func TestRead_NonNumericCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("t,x,y,p\n1,two,3,1\n"), 0o644))

	_, err := New(DefaultOptions()).Read(context.Background(), path)

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileCorrupt))
}

func TestRead_UnsupportedExtension(t *testing.T) {
	_, err := New(DefaultOptions()).Read(context.Background(), "events.h5")

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnsupportedExtension))
	assert.Contains(t, err.Error(), ".h5")
}

func TestWrite_RejectsWrongShape(t *testing.T) {
	b := &modality.Bundle{Data: [][]float64{{1, 2, 3}}}

	err := New(DefaultOptions()).Write(context.Background(), b, filepath.Join(t.TempDir(), "out.csv"))

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeShapeMismatch))
}

func TestWrite_NilData(t *testing.T) {
	err := New(DefaultOptions()).Write(context.Background(), &modality.Bundle{}, filepath.Join(t.TempDir(), "out.csv"))

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestWriteRead_TextFormats(t *testing.T) {
	for _, ext := range []string{".csv", ".txt"} {
		t.Run(ext, func(t *testing.T) {
			// Given: a bundle written into a nested directory
			path := filepath.Join(t.TempDir(), "nested", "events"+ext)
			in := sampleBundle(5)
			codec := New(DefaultOptions())

			// When: writing then reading
			require.NoError(t, codec.Write(context.Background(), in, path))
			out, err := codec.Read(context.Background(), path)

			// Then: values survive
			require.NoError(t, err)
			assert.Equal(t, in.Data, out.Data)
		})
	}
}

func TestWrite_TXTIsTabSeparated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	b := &modality.Bundle{Data: [][]float64{{1.5, 2, 3, 1}}}

	require.NoError(t, New(DefaultOptions()).Write(context.Background(), b, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t\tx\ty\tp\n1.5\t2\t3\t1\n", string(content))
}

func TestWriteRead_AEDAT4_AllCompressions(t *testing.T) {
	comps := []Compression{CompressionNone, CompressionLZ4, CompressionLZ4High, CompressionZstd, CompressionZstdHigh}
	for _, comp := range comps {
		t.Run(comp.String(), func(t *testing.T) {
			// Given: more events than one packet holds
			path := filepath.Join(t.TempDir(), "rec.aedat4")
			in := sampleBundle(25)
			codec := New(Options{Compression: comp, PacketSize: 10})

			// When: writing then reading
			require.NoError(t, codec.Write(context.Background(), in, path))
			out, err := codec.Read(context.Background(), path)

			// Then: every event is recovered in order
			require.NoError(t, err)
			assert.Equal(t, in.Data, out.Data)
			assert.Equal(t, out.Column(0), out.Timestamps)
		})
	}
}

func TestWrite_AEDAT4_HeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.aedat4")
	require.NoError(t, New(Options{Compression: CompressionZstd}).Write(context.Background(), sampleBundle(3), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, len(raw) > len(aedatMagic)+4)
	assert.Equal(t, aedatMagic, string(raw[:len(aedatMagic)]))

	size := binary.LittleEndian.Uint32(raw[len(aedatMagic):])
	headerBytes := raw[len(aedatMagic)+4 : len(aedatMagic)+4+int(size)]
	hdr, err := parseHeader(headerBytes)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, hdr.Compression)
	assert.Equal(t, int64(-1), hdr.DataTablePosition)
	assert.Contains(t, hdr.InfoNode, `<attr key="typeIdentifier" type="string">EVTS</attr>`)
	assert.Contains(t, hdr.InfoNode, `<attr key="sizeX" type="int">3</attr>`)
}

func TestRead_AEDAT4_SkipsForeignPackets(t *testing.T) {
	// Given: an uncompressed file with a non-event packet before the events
	path := filepath.Join(t.TempDir(), "mixed.aedat4")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, _ = f.WriteString(aedatMagic)
	require.NoError(t, writeSized(f, nil, buildHeader(CompressionNone, "")))
	foreign := []byte{8, 0, 0, 0, 'F', 'R', 'M', 'E', 0, 0, 0, 0}
	one := int32(1)
	require.NoError(t, writeSized(f, &one, foreign))
	zero := int32(0)
	require.NoError(t, writeSized(f, &zero, buildEventPacket([]event{{T: 7, X: 1, Y: 2, On: true}})))
	require.NoError(t, f.Close())

	// When: reading
	b, err := New(DefaultOptions()).Read(context.Background(), path)

	// Then: only the event packet contributes
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{7, 1, 2, 1}}, b.Data)
}

// withDataTable appends a trailing blob to an AEDAT4 file and points the
// header's dataTablePosition at it, the way DV recorders finish a file.
func withDataTable(t *testing.T, path string, table []byte) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	start := len(aedatMagic) + 4
	size := int(binary.LittleEndian.Uint32(raw[len(aedatMagic):]))
	hdr := rootTable(raw[start : start+size])
	slot := int(hdr.Offset(6))
	require.NotZero(t, slot, "header must carry dataTablePosition")
	binary.LittleEndian.PutUint64(raw[start+int(hdr.Pos)+slot:], uint64(len(raw)))
	require.NoError(t, os.WriteFile(path, append(raw, table...), 0o644))
}

func TestRead_AEDAT4_StopsAtDataTable(t *testing.T) {
	for _, comp := range []Compression{CompressionNone, CompressionLZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			// Given: a recording followed by a file data table with no packet prefix
			path := filepath.Join(t.TempDir(), "rec.aedat4")
			in := sampleBundle(12)
			codec := New(Options{Compression: comp, PacketSize: 5})
			require.NoError(t, codec.Write(context.Background(), in, path))
			table := []byte{0xff, 0xff, 0xff, 0x7f, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
			withDataTable(t, path, table)

			// When: reading it
			out, err := codec.Read(context.Background(), path)

			// Then: every event is recovered and the table is not parsed as a packet
			require.NoError(t, err)
			assert.Equal(t, in.Data, out.Data)
		})
	}
}

func TestRead_AEDAT4_NoEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.aedat4")
	require.NoError(t, New(DefaultOptions()).Write(context.Background(), &modality.Bundle{Data: [][]float64{}}, path))

	_, err := New(DefaultOptions()).Read(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events found")
}

func TestRead_AEDAT4_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.aedat4")
	require.NoError(t, os.WriteFile(path, []byte("#!AER-DAT2.0\r\nrest of file"), 0o644))

	_, err := New(DefaultOptions()).Read(context.Background(), path)

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileCorrupt))
}

func TestToEvent_RoundsAndClamps(t *testing.T) {
	e := toEvent([]float64{12.6, 40000, -40000, -1})

	assert.Equal(t, int64(13), e.T)
	assert.Equal(t, int16(32767), e.X)
	assert.Equal(t, int16(-32768), e.Y)
	assert.False(t, e.On)
}

func TestParseCompression(t *testing.T) {
	tests := map[string]Compression{
		"":          CompressionLZ4,
		"LZ4":       CompressionLZ4,
		"none":      CompressionNone,
		"zstd":      CompressionZstd,
		"zstd_high": CompressionZstdHigh,
	}
	for in, want := range tests {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestDefaultRegistry_HasDVSCodec(t *testing.T) {
	_, ok := modality.Default.Reader(modality.DVS)
	assert.True(t, ok)
	_, ok = modality.Default.Writer(modality.DVS)
	assert.True(t, ok)
}
