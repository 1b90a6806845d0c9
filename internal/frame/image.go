package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Clone returns an opaque RGBA copy of img with its origin moved to (0, 0).
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.RGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			copy(dst.Pix[di:di+4*b.Dx()], src.Pix[si:si+4*b.Dx()])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}
	forceOpaque(dst)
	return dst
}

// ToRGBA returns img unchanged when it already is a zero-origin RGBA, otherwise a copy.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	return Clone(img)
}

// Filled returns a w x h image filled with c.
func Filled(w, h int, c color.RGBA) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c.A = 255
	// Fill the first row, then double it down the image.
	row := img.Pix[:4*w]
	for x := 0; x < w; x++ {
		row[4*x] = c.R
		row[4*x+1] = c.G
		row[4*x+2] = c.B
		row[4*x+3] = 255
	}
	for y := 1; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+4*w], row)
	}
	return img
}

func forceOpaque(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
}
