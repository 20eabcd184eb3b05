package dvs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// AEDAT4 layout:
//
//	"#!AER-DAT4.0\r\n"
//	int32 LE header size, IOHeader flatbuffer
//	repeated: int32 LE stream id, int32 LE payload size, payload
//
// A payload is an optionally compressed flatbuffer. Event payloads carry the
// "EVTS" file identifier and a vector of 16-byte Event structs.
const (
	aedatMagic      = "#!AER-DAT4.0\r\n"
	eventIdentifier = "EVTS"
	eventStructSize = 16
	// maxPacketSize bounds a single payload allocation.
	maxPacketSize = 1 << 30
)

// Compression is the AEDAT4 packet compression.
type Compression int32

const (
	CompressionNone     Compression = 0
	CompressionLZ4      Compression = 1
	CompressionLZ4High  Compression = 2
	CompressionZstd     Compression = 3
	CompressionZstdHigh Compression = 4
)

// ParseCompression maps a config value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	case "lz4_high":
		return CompressionLZ4High, nil
	case "zstd":
		return CompressionZstd, nil
	case "zstd_high":
		return CompressionZstdHigh, nil
	}
	return 0, serrors.Newf(serrors.ErrCodeInvalidInput, "unknown AEDAT4 compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "NONE"
	case CompressionLZ4:
		return "LZ4"
	case CompressionLZ4High:
		return "LZ4_HIGH"
	case CompressionZstd:
		return "ZSTD"
	case CompressionZstdHigh:
		return "ZSTD_HIGH"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(c))
}

// event mirrors the on-disk Event struct: int64 timestamp (µs), int16 x,
// int16 y, bool polarity, 3 bytes padding.
type event struct {
	T  int64
	X  int16
	Y  int16
	On bool
}

type ioHeader struct {
	Compression       Compression
	DataTablePosition int64
	InfoNode          string
}

// ---------------------------------------------------------------------------
// reading
// ---------------------------------------------------------------------------

func readAEDAT4(ctx context.Context, path string) ([]event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return nil, serrors.IOError("cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	r := &countingReader{r: bufio.NewReader(f)}
	hdr, err := readHeader(r)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "invalid AEDAT4 header in "+path, err)
	}

	dec, err := newDecompressor(hdr.Compression)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "invalid AEDAT4 header in "+path, err)
	}
	defer dec.close()

	var events []event
	var prefix [8]byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// the file data table trails the packets and has no packet prefix
		if hdr.DataTablePosition >= 0 && r.n >= hdr.DataTablePosition {
			break
		}
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, serrors.New(serrors.ErrCodeFileCorrupt, "truncated AEDAT4 packet header in "+path, err)
		}
		size := int32(binary.LittleEndian.Uint32(prefix[4:]))
		if size < 0 || size > maxPacketSize {
			return nil, serrors.Newf(serrors.ErrCodeFileCorrupt, "invalid AEDAT4 packet size %d in %s", size, path)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, serrors.New(serrors.ErrCodeFileCorrupt, "truncated AEDAT4 packet in "+path, err)
		}

		raw, err := dec.decompress(payload)
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeFileCorrupt, "cannot decompress AEDAT4 packet in "+path, err)
		}
		if !hasIdentifier(raw, eventIdentifier) {
			continue
		}
		events, err = appendEvents(events, raw)
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeFileCorrupt, "invalid event packet in "+path, err)
		}
	}
	return events, nil
}

// countingReader tracks the byte offset from the start of the file.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func readHeader(r io.Reader) (*ioHeader, error) {
	magic := make([]byte, len(aedatMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != aedatMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < 8 || size > maxPacketSize {
		return nil, fmt.Errorf("invalid header size %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return parseHeader(buf)
}

func parseHeader(buf []byte) (hdr *ioHeader, err error) {
	defer func() {
		if r := recover(); r != nil {
			hdr, err = nil, fmt.Errorf("malformed IOHeader: %v", r)
		}
	}()

	t := rootTable(buf)
	hdr = &ioHeader{DataTablePosition: -1}
	if o := flatbuffers.UOffsetT(t.Offset(4)); o != 0 {
		hdr.Compression = Compression(t.GetInt32(o + t.Pos))
	}
	if o := flatbuffers.UOffsetT(t.Offset(6)); o != 0 {
		hdr.DataTablePosition = t.GetInt64(o + t.Pos)
	}
	if o := flatbuffers.UOffsetT(t.Offset(8)); o != 0 {
		hdr.InfoNode = string(t.ByteVector(o + t.Pos))
	}
	return hdr, nil
}

func rootTable(buf []byte) *flatbuffers.Table {
	return &flatbuffers.Table{Bytes: buf, Pos: flatbuffers.GetUOffsetT(buf)}
}

func hasIdentifier(buf []byte, id string) bool {
	return len(buf) >= 8 && string(buf[4:8]) == id
}

func appendEvents(dst []event, buf []byte) (out []event, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = dst, fmt.Errorf("malformed EventPacket: %v", r)
		}
	}()

	t := rootTable(buf)
	o := flatbuffers.UOffsetT(t.Offset(4))
	if o == 0 {
		return dst, nil
	}
	start := t.Vector(o)
	n := t.VectorLen(o)
	if int(start)+n*eventStructSize > len(buf) {
		return dst, fmt.Errorf("event vector of %d overruns packet", n)
	}
	for i := 0; i < n; i++ {
		at := start + flatbuffers.UOffsetT(i*eventStructSize)
		dst = append(dst, event{
			T:  t.GetInt64(at),
			X:  t.GetInt16(at + 8),
			Y:  t.GetInt16(at + 10),
			On: t.GetBool(at + 12),
		})
	}
	return dst, nil
}

type decompressor struct {
	kind Compression
	zstd *zstd.Decoder
}

func newDecompressor(kind Compression) (*decompressor, error) {
	d := &decompressor{kind: kind}
	switch kind {
	case CompressionNone, CompressionLZ4, CompressionLZ4High:
	case CompressionZstd, CompressionZstdHigh:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		d.zstd = dec
	default:
		return nil, fmt.Errorf("unsupported compression %s", kind)
	}
	return d, nil
}

func (d *decompressor) decompress(p []byte) ([]byte, error) {
	switch d.kind {
	case CompressionLZ4, CompressionLZ4High:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(p)))
	case CompressionZstd, CompressionZstdHigh:
		return d.zstd.DecodeAll(p, nil)
	default:
		return p, nil
	}
}

func (d *decompressor) close() {
	if d.zstd != nil {
		d.zstd.Close()
	}
}

// ---------------------------------------------------------------------------
// writing
// ---------------------------------------------------------------------------

func writeAEDAT4(ctx context.Context, path string, events []event, comp Compression, packetSize int) error {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	f, err := os.Create(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+path, err)
	}

	err = func() error {
		w := bufio.NewWriter(f)
		if _, err := w.WriteString(aedatMagic); err != nil {
			return err
		}
		header := buildHeader(comp, infoNode(events, comp))
		if err := writeSized(w, nil, header); err != nil {
			return err
		}

		enc, err := newCompressor(comp)
		if err != nil {
			return err
		}
		defer enc.close()

		for start := 0; start < len(events); start += packetSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(start+packetSize, len(events))
			payload, err := enc.compress(buildEventPacket(events[start:end]))
			if err != nil {
				return err
			}
			streamID := int32(0)
			if err := writeSized(w, &streamID, payload); err != nil {
				return err
			}
		}
		return w.Flush()
	}()

	closeErr := f.Close()
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot write "+path, err)
	}
	if closeErr != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot close "+path, closeErr)
	}
	return nil
}

// writeSized writes [streamID] size payload, little endian.
func writeSized(w io.Writer, streamID *int32, payload []byte) error {
	if streamID != nil {
		if err := binary.Write(w, binary.LittleEndian, *streamID); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func buildHeader(comp Compression, info string) []byte {
	b := flatbuffers.NewBuilder(256 + len(info))
	infoOff := b.CreateString(info)
	b.StartObject(3)
	b.PrependUOffsetTSlot(2, infoOff, 0)
	b.PrependInt64Slot(1, -1, 0)
	b.PrependInt32Slot(0, int32(comp), -1)
	b.Finish(b.EndObject())
	return b.FinishedBytes()
}

func buildEventPacket(events []event) []byte {
	b := flatbuffers.NewBuilder(64 + len(events)*eventStructSize)
	b.StartVector(eventStructSize, len(events), 8)
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		b.Prep(8, eventStructSize)
		b.Pad(3)
		b.PrependBool(e.On)
		b.PrependInt16(e.Y)
		b.PrependInt16(e.X)
		b.PrependInt64(e.T)
	}
	vec := b.EndVector(len(events))
	b.StartObject(1)
	b.PrependUOffsetTSlot(0, vec, 0)
	b.FinishWithFileIdentifier(b.EndObject(), []byte(eventIdentifier))
	return b.FinishedBytes()
}

func infoNode(events []event, comp Compression) string {
	var maxX, maxY int16
	for _, e := range events {
		maxX = max(maxX, e.X)
		maxY = max(maxY, e.Y)
	}
	return fmt.Sprintf(`<dv version="2.0"><node name="outInfo" path="/mainloop/Recorder/outInfo/">`+
		`<node name="0" path="/mainloop/Recorder/outInfo/0/">`+
		`<attr key="compression" type="string">%s</attr>`+
		`<attr key="originalOutputName" type="string">events</attr>`+
		`<attr key="typeDescription" type="string">Array of events (polarity ON/OFF).</attr>`+
		`<attr key="typeIdentifier" type="string">%s</attr>`+
		`<node name="info" path="/mainloop/Recorder/outInfo/0/info/">`+
		`<attr key="sizeX" type="int">%d</attr><attr key="sizeY" type="int">%d</attr>`+
		`<attr key="source" type="string">SynapSense</attr>`+
		`</node></node></node></dv>`,
		comp, eventIdentifier, int(maxX)+1, int(maxY)+1)
}

type compressor struct {
	kind Compression
	zstd *zstd.Encoder
}

func newCompressor(kind Compression) (*compressor, error) {
	c := &compressor{kind: kind}
	switch kind {
	case CompressionNone, CompressionLZ4, CompressionLZ4High:
	case CompressionZstd, CompressionZstdHigh:
		level := zstd.SpeedDefault
		if kind == CompressionZstdHigh {
			level = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, err
		}
		c.zstd = enc
	default:
		return nil, fmt.Errorf("unsupported compression %s", kind)
	}
	return c, nil
}

func (c *compressor) compress(p []byte) ([]byte, error) {
	switch c.kind {
	case CompressionLZ4, CompressionLZ4High:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if c.kind == CompressionLZ4High {
			if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
				return nil, err
			}
		}
		if _, err := zw.Write(p); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd, CompressionZstdHigh:
		return c.zstd.EncodeAll(p, nil), nil
	default:
		return p, nil
	}
}

func (c *compressor) close() {
	if c.zstd != nil {
		_ = c.zstd.Close()
	}
}

// toEvent converts a t,x,y,p row. Timestamps are rounded to whole
// microseconds and coordinates saturate to int16.
func toEvent(row []float64) event {
	return event{
		T:  int64(math.Round(row[0])),
		X:  clampInt16(row[1]),
		Y:  clampInt16(row[2]),
		On: row[3] > 0,
	}
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
