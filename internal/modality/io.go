package modality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

// IO is the single entry point for reading and writing sensor files.
type IO struct {
	reg    *Registry
	logger *slog.Logger
}

// NewIO returns a facade over reg. A nil logger uses slog.Default().
func NewIO(reg *Registry, logger *slog.Logger) *IO {
	if reg == nil {
		reg = Default
	}
	return &IO{reg: reg, logger: logger}
}

// Registry returns the registry behind the facade.
func (io *IO) Registry() *Registry {
	return io.reg
}

func (io *IO) log() *slog.Logger {
	if io.logger != nil {
		return io.logger
	}
	return slog.Default()
}

// Read resolves the modality from the extension of path and decodes it.
func (io *IO) Read(ctx context.Context, path string) (*Bundle, error) {
	m, ok := io.reg.ResolveModality(path, OpRead)
	if !ok {
		return nil, serrors.New(serrors.ErrCodeUnsupportedExtension,
			"unsupported file extension: "+path, nil).WithDetail("path", path)
	}
	rd, ok := io.reg.Reader(m)
	if !ok {
		return nil, noCodec("reader", m)
	}
	io.log().Info(fmt.Sprintf("Reading %s data", strings.ToUpper(string(m))), slog.String("path", path))
	return rd.Read(ctx, path)
}

// ReadWithModality decodes path with the reader for m regardless of extension
// resolution order.
func (io *IO) ReadWithModality(ctx context.Context, m Modality, path string) (*Bundle, error) {
	rd, ok := io.reg.Reader(m)
	if !ok {
		return nil, noCodec("reader", m)
	}
	io.log().Info(fmt.Sprintf("Reading %s data with forced modality override", strings.ToUpper(string(m))),
		slog.String("path", path))
	return rd.Read(ctx, path)
}

// Write encodes b to path with the writer for m.
func (io *IO) Write(ctx context.Context, m Modality, b *Bundle, path string) error {
	w, ok := io.reg.Writer(m)
	if !ok {
		return noCodec("writer", m)
	}
	if b == nil {
		return serrors.New(serrors.ErrCodeInvalidInput, "nil data bundle", nil)
	}
	io.log().Info(fmt.Sprintf("Writing %s data", strings.ToUpper(string(m))), slog.String("path", path))
	return w.Write(ctx, b, path)
}

// ValidateFileForModality reports whether m supports the extension of path for op.
func (io *IO) ValidateFileForModality(m Modality, path string, op Op) (bool, error) {
	exts, err := io.reg.SupportedExtensions(m, op)
	if err != nil {
		return false, err
	}
	return ValidateExtension(path, exts), nil
}

func noCodec(kind string, m Modality) error {
	return serrors.New(serrors.ErrCodeNoCodec,
		fmt.Sprintf("no %s registered for modality: %s", kind, m), nil)
}
