// Package rgb provides geometric transforms for NRGBA images.
package rgb

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	serrors "github.com/synapsense/synapsense/internal/errors"
)

func checkImage(img *image.NRGBA) error {
	if img == nil || img.Rect.Empty() {
		return serrors.New(serrors.ErrCodeInvalidInput, "input image must be a non-empty image", nil)
	}
	return nil
}

// Resize scales img to width x height with bilinear interpolation.
func Resize(img *image.NRGBA, width, height int) (*image.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, serrors.Newf(serrors.ErrCodeInvalidInput,
			"resize dimensions must be positive integers, got %dx%d", width, height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
	return dst, nil
}

// Crop returns a copy of the region [xMin, xMax) x [yMin, yMax), which
// must lie inside the image.
func Crop(img *image.NRGBA, xMin, yMin, xMax, yMax int) (*image.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if !(0 <= xMin && xMin < xMax && xMax <= w && 0 <= yMin && yMin < yMax && yMax <= h) {
		return nil, serrors.New(serrors.ErrCodeInvalidInput,
			fmt.Sprintf("crop box (%d, %d, %d, %d) is out of image bounds %dx%d", xMin, yMin, xMax, yMax, w, h), nil)
	}
	src := image.Rect(xMin, yMin, xMax, yMax).Add(img.Rect.Min)
	dst := image.NewNRGBA(image.Rect(0, 0, xMax-xMin, yMax-yMin))
	draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
	return dst, nil
}

// Rotate turns img counter-clockwise by angleDeg about (w/2, h/2) using
// integer division for the centre. The canvas keeps its size and uncovered
// pixels are opaque black.
func Rotate(img *image.NRGBA, angleDeg float64) (*image.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	if math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		return nil, serrors.New(serrors.ErrCodeInvalidInput, "angle must be a finite number", nil)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	cx, cy := float64(w/2), float64(h/2)
	rad := angleDeg * math.Pi / 180
	a, b := math.Cos(rad), math.Sin(rad)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Rect, image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)

	// source-to-destination affine matrix; y grows downwards
	s2d := f64.Aff3{
		a, b, (1-a)*cx - b*cy,
		-b, a, b*cx + (1-a)*cy,
	}
	src := ToOrigin(img)
	draw.BiLinear.Transform(dst, s2d, src, src.Rect, draw.Src, nil)
	return dst, nil
}

// FlipHorizontal mirrors img around its vertical axis.
func FlipHorizontal(img *image.NRGBA) (*image.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	src := ToOrigin(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)
	for y := range h {
		for x := range w {
			dst.SetNRGBA(w-1-x, y, src.NRGBAAt(x, y))
		}
	}
	return dst, nil
}

// FlipVertical mirrors img around its horizontal axis.
func FlipVertical(img *image.NRGBA) (*image.NRGBA, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	src := ToOrigin(img)
	h := src.Rect.Dy()
	dst := image.NewNRGBA(src.Rect)
	for y := range h {
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[(h-1-y)*src.Stride:(h-y)*src.Stride])
	}
	return dst, nil
}

// ToOrigin returns img, or a copy of it translated so its bounds start at (0, 0).
func ToOrigin(img *image.NRGBA) *image.NRGBA {
	if img.Rect.Min == (image.Point{}) && img.Stride == 4*img.Rect.Dx() {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	draw.Copy(dst, image.Point{}, img, img.Rect, draw.Src, nil)
	return dst
}
