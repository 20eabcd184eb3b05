// Package dvs reads and writes event-camera recordings: t,x,y,p text tables
// and AEDAT4 containers.
package dvs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

// DefaultPacketSize is the number of events per AEDAT4 packet.
const DefaultPacketSize = 4096

var (
	readExtensions  = []string{".aedat4", ".txt", ".csv"}
	writeExtensions = []string{".aedat4", ".csv", ".txt"}

	// Columns is the canonical DVS column order.
	Columns = []string{"t", "x", "y", "p"}
)

// Options configures AEDAT4 output.
type Options struct {
	Compression Compression
	PacketSize  int
}

// DefaultOptions returns LZ4 compression with DefaultPacketSize events per packet.
func DefaultOptions() Options {
	return Options{Compression: CompressionLZ4, PacketSize: DefaultPacketSize}
}

// Codec implements modality.Codec for DVS data.
type Codec struct {
	opts Options
}

// New creates a DVS codec.
func New(opts Options) *Codec {
	if opts.PacketSize <= 0 {
		opts.PacketSize = DefaultPacketSize
	}
	return &Codec{opts: opts}
}

func init() {
	modality.Default.Register(modality.DVS, New(DefaultOptions()))
}

// Read decodes a .csv, .txt or .aedat4 file into an N x 4 bundle.
func (c *Codec) Read(ctx context.Context, path string) (*modality.Bundle, error) {
	if err := modality.CheckExtension(path, readExtensions); err != nil {
		return nil, err
	}

	var (
		data [][]float64
		err  error
	)
	switch modality.FileExtension(path) {
	case ".aedat4":
		data, err = readAEDAT4Rows(ctx, path)
	default:
		data, err = readTableRows(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed reading DVS file %s: %w", path, err)
	}

	b := &modality.Bundle{
		Modality: modality.DVS,
		Data:     data,
		Columns:  append([]string(nil), Columns...),
	}
	b.Timestamps = b.Column(0)

	slog.Info("DVS data read", slog.Int("events", len(data)), slog.String("path", path))
	return b, nil
}

func readTableRows(ctx context.Context, path string) ([][]float64, error) {
	t, err := modality.ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(Columns))
	for i, name := range Columns {
		idx[i] = t.Index(name)
		if idx[i] < 0 {
			return nil, serrors.New(serrors.ErrCodeMissingColumns,
				"missing DVS columns: "+strings.Join(Columns, ", "), nil).
				WithDetail("header", strings.Join(t.Header, ","))
		}
	}

	data := make([][]float64, len(t.Rows))
	for r := range t.Rows {
		row := make([]float64, len(idx))
		for j, col := range idx {
			v, err := t.Float(r, col)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		data[r] = row
	}
	return data, nil
}

func readAEDAT4Rows(ctx context.Context, path string) ([][]float64, error) {
	events, err := readAEDAT4(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "no events found in .aedat4 file", nil)
	}
	data := make([][]float64, len(events))
	for i, e := range events {
		p := 0.0
		if e.On {
			p = 1
		}
		data[i] = []float64{float64(e.T), float64(e.X), float64(e.Y), p}
	}
	return data, nil
}

// Write encodes an N x 4 bundle. Text outputs keep the bundle's column names;
// .txt is tab separated.
func (c *Codec) Write(ctx context.Context, b *modality.Bundle, path string) error {
	if err := modality.CheckExtension(path, writeExtensions); err != nil {
		return err
	}
	if b == nil || b.Data == nil {
		return serrors.New(serrors.ErrCodeInvalidInput, "DVS data must be an N x 4 matrix", nil)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if _, cols := b.Shape(); len(b.Data) > 0 && cols != 4 {
		return serrors.Newf(serrors.ErrCodeShapeMismatch, "DVS data must be an N x 4 matrix, got %d columns", cols)
	}
	if err := modality.EnsureParent(path); err != nil {
		return err
	}

	var err error
	switch modality.FileExtension(path) {
	case ".aedat4":
		events := make([]event, len(b.Data))
		for i, row := range b.Data {
			events[i] = toEvent(row)
		}
		err = writeAEDAT4(ctx, path, events, c.opts.Compression, c.opts.PacketSize)
	case ".txt":
		err = modality.WriteTable(ctx, path, header(b), b.Data, '\t')
	default:
		err = modality.WriteTable(ctx, path, header(b), b.Data, ',')
	}
	if err != nil {
		return fmt.Errorf("failed writing DVS file %s: %w", path, err)
	}

	slog.Info("DVS data saved", slog.Int("events", len(b.Data)), slog.String("path", path))
	return nil
}

func header(b *modality.Bundle) []string {
	if len(b.Columns) == 4 {
		return b.Columns
	}
	return Columns
}
