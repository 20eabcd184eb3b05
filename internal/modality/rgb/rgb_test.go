package rgb

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	serrors "github.com/synapsense/synapsense/internal/errors"
	"github.com/synapsense/synapsense/internal/modality"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestWriteRead_PNGIsLossless(t *testing.T) {
	// Given: an image bundle
	path := filepath.Join(t.TempDir(), "out", "frame.png")
	in := &modality.Bundle{Modality: modality.RGB, Image: gradient(8, 6)}
	codec := New(Options{})

	// When: writing then reading
	require.NoError(t, codec.Write(context.Background(), in, path))
	out, err := codec.Read(context.Background(), path)

	// Then: pixels and shape survive
	require.NoError(t, err)
	assert.Equal(t, in.Image.Pix, out.Image.Pix)
	rows, cols := out.Shape()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 8, cols)
	assert.Equal(t, Columns, out.Columns)
}

func TestWriteRead_JPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	in := &modality.Bundle{Image: gradient(16, 16)}

	require.NoError(t, New(Options{JPEGQuality: 90}).Write(context.Background(), in, path))
	out, err := New(Options{}).Read(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, in.Image.Rect, out.Image.Rect)
}

func TestRead_BMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.bmp")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, gradient(4, 3)))
	require.NoError(t, f.Close())

	out, err := New(Options{}).Read(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, gradient(4, 3).Pix, out.Image.Pix)
}

func TestRead_CorruptImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	_, err := New(Options{}).Read(context.Background(), path)

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeFileCorrupt))
	assert.Contains(t, err.Error(), "failed to read image")
}

func TestWrite_MissingImage(t *testing.T) {
	err := New(Options{}).Write(context.Background(), &modality.Bundle{}, filepath.Join(t.TempDir(), "x.png"))

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeInvalidInput))
}

func TestWrite_BMPNotWritable(t *testing.T) {
	err := New(Options{}).Write(context.Background(), &modality.Bundle{Image: gradient(1, 1)},
		filepath.Join(t.TempDir(), "x.bmp"))

	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.ErrCodeUnsupportedExtension))
}

func TestToNRGBA_RebasesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 8))
	src.Set(5, 5, color.RGBA{R: 200, A: 255})

	out := ToNRGBA(src)

	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Rect)
	assert.Equal(t, uint8(200), out.NRGBAAt(0, 0).R)
}

func TestNew_QualityFallback(t *testing.T) {
	assert.Equal(t, DefaultJPEGQuality, New(Options{JPEGQuality: 0}).opts.JPEGQuality)
	assert.Equal(t, DefaultJPEGQuality, New(Options{JPEGQuality: 101}).opts.JPEGQuality)
	assert.Equal(t, 50, New(Options{JPEGQuality: 50}).opts.JPEGQuality)
}
