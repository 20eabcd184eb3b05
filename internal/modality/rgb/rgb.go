// Package rgb reads and writes colour images.
package rgb

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"golang.org/x/image/bmp"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

// DefaultJPEGQuality is used when Options.JPEGQuality is unset.
const DefaultJPEGQuality = 95

var (
	readExtensions  = []string{".png", ".jpg", ".jpeg", ".bmp"}
	writeExtensions = []string{".png", ".jpg", ".jpeg"}

	// Columns names the channels of an image bundle.
	Columns = []string{"R", "G", "B"}
)

// Options configures image encoding.
type Options struct {
	JPEGQuality int
}

// Codec implements modality.Codec for RGB images.
type Codec struct {
	opts Options
}

// New creates an RGB codec. Quality outside 1..100 falls back to DefaultJPEGQuality.
func New(opts Options) *Codec {
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return &Codec{opts: opts}
}

func init() {
	modality.Default.Register(modality.RGB, New(Options{}))
}

// Read decodes an image into an NRGBA bundle.
func (c *Codec) Read(ctx context.Context, path string) (*modality.Bundle, error) {
	if err := modality.CheckExtension(path, readExtensions); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.New(serrors.ErrCodeFileNotFound, "file not found: "+path, err)
		}
		return nil, serrors.IOError("cannot open "+path, err)
	}
	defer func() { _ = f.Close() }()

	var img image.Image
	r := bufio.NewReader(f)
	switch modality.FileExtension(path) {
	case ".png":
		img, err = png.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	default:
		img, err = jpeg.Decode(r)
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeFileCorrupt, "failed to read image: "+path, err)
	}

	b := &modality.Bundle{
		Modality: modality.RGB,
		Image:    ToNRGBA(img),
		Columns:  append([]string(nil), Columns...),
	}
	slog.Info("RGB image read",
		slog.String("path", path),
		slog.Int("width", b.Image.Rect.Dx()),
		slog.Int("height", b.Image.Rect.Dy()))
	return b, nil
}

// ToNRGBA returns img as an NRGBA image with its origin at (0, 0).
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Rect, img, bounds.Min, draw.Src)
	return out
}

// Write encodes the bundle image as PNG or JPEG.
func (c *Codec) Write(ctx context.Context, b *modality.Bundle, path string) error {
	if err := modality.CheckExtension(path, writeExtensions); err != nil {
		return err
	}
	if b == nil || b.Image == nil {
		return serrors.New(serrors.ErrCodeInvalidInput, "data bundle must contain an image", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := modality.EnsureParent(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, "cannot create "+path, err)
	}
	w := bufio.NewWriter(f)
	if modality.FileExtension(path) == ".png" {
		err = png.Encode(w, b.Image)
	} else {
		err = jpeg.Encode(w, b.Image, &jpeg.Options{Quality: c.opts.JPEGQuality})
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return serrors.New(serrors.ErrCodeWriteFailed, fmt.Sprintf("failed to write image %s", path), err)
	}

	slog.Info("RGB image saved", slog.String("path", path))
	return nil
}
