// Package transform composites a source frame onto a fixed-size canvas using
// the shared display geometry: mirror, then scale, then rotate, then place.
package transform

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/params"
)

const (
	// MaxDimension bounds the logical width and height of the scaled image.
	MaxDimension = 16384
	// cropMargin pads the visible band for bilinear sampling and rounding.
	cropMargin = 2
)

// Compose renders src onto a canvas of exactly size pixels. A nil src yields a
// background-only canvas. Geometric edge cases never fail: content pushed off
// the canvas is clipped, possibly to nothing.
func Compose(src *image.RGBA, p params.DisplayParameters, size image.Point) *image.RGBA {
	canvas := frame.Filled(size.X, size.Y, p.BackgroundColor)
	if src == nil || src.Bounds().Empty() {
		return canvas
	}

	img := Mirror(src, p.MirrorHorizontal, p.MirrorVertical)
	img = scaleVisible(img, p, size)
	img = Rotate(img, p.Rotation, p.BackgroundColor)
	Place(canvas, img, p.OffsetX, p.OffsetY)
	return canvas
}

// Mirror flips src around its vertical axis (horizontal mirror), its
// horizontal axis (vertical mirror), or both.
func Mirror(src *image.RGBA, horizontal, vertical bool) *image.RGBA {
	switch {
	case horizontal && vertical:
		return fromNRGBA(imaging.Rotate180(src))
	case horizontal:
		return fromNRGBA(imaging.FlipH(src))
	case vertical:
		return fromNRGBA(imaging.FlipV(src))
	default:
		return src
	}
}

// ScaledSize returns the dimensions src would have after Scale, and false when
// the factor is degenerate and the frame stays unscaled.
func ScaledSize(w, h int, factor float64) (int, int, bool) {
	if !(factor > 0) || math.IsInf(factor, 0) || factor == 1 {
		return w, h, false
	}
	nw := int(float64(w) * factor)
	nh := int(float64(h) * factor)
	if nw <= 0 || nh <= 0 {
		return w, h, false
	}
	if nw > MaxDimension || nh > MaxDimension {
		if w >= h {
			nw, nh = MaxDimension, max(1, h*MaxDimension/w)
		} else {
			nw, nh = max(1, w*MaxDimension/h), MaxDimension
		}
	}
	return nw, nh, true
}

// Scale resizes src uniformly by factor using bilinear sampling.
func Scale(src *image.RGBA, factor float64) *image.RGBA {
	b := src.Bounds()
	nw, nh, ok := ScaledSize(b.Dx(), b.Dy(), factor)
	if !ok {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// scaleVisible scales src like Scale but only allocates the band around the
// scaled center that can reach the canvas. The band is symmetric about the
// center, so rotation and placement see the same center as the full image.
func scaleVisible(src *image.RGBA, p params.DisplayParameters, canvas image.Point) *image.RGBA {
	b := src.Bounds()
	nw, nh, ok := ScaledSize(b.Dx(), b.Dy(), p.Scale)
	if !ok {
		return src
	}
	hx, hy := visibleHalfExtent(canvas, p.OffsetX, p.OffsetY, p.Rotation)
	mx := max(0, nw/2-hx-cropMargin)
	my := max(0, nh/2-hy-cropMargin)

	dst := image.NewRGBA(image.Rect(mx, my, nw-mx, nh-my))
	// Only dst's bounds are written; sampling follows the full-size mapping.
	draw.ApproxBiLinear.Scale(dst, image.Rect(0, 0, nw, nh), src, b, draw.Src, nil)
	return dst
}

// visibleHalfExtent bounds, in unrotated image space, how far from the image
// center a canvas pixel can land.
func visibleHalfExtent(canvas image.Point, offsetX, offsetY int, degrees float64) (int, int) {
	ax := float64(canvas.X)/2 + math.Abs(float64(offsetX))
	ay := float64(canvas.Y)/2 + math.Abs(float64(offsetY))
	sin, cos := 0.0, 1.0
	if !math.IsNaN(degrees) && !math.IsInf(degrees, 0) {
		sin, cos = math.Sincos(degrees * math.Pi / 180)
	}
	sin, cos = math.Abs(sin), math.Abs(cos)
	return int(math.Ceil(ax*cos + ay*sin)), int(math.Ceil(ax*sin + ay*cos))
}

// RotatedSize returns the bounding box of a w x h image rotated by degrees.
func RotatedSize(w, h int, degrees float64) (int, int) {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	sin, cos = math.Abs(sin), math.Abs(cos)
	nw := int(float64(h)*sin + float64(w)*cos)
	nh := int(float64(h)*cos + float64(w)*sin)
	return max(1, nw), max(1, nh)
}

// Rotate turns src counter-clockwise (as seen on screen) about its center. The
// result is sized to the rotated bounding box; uncovered corners take bg.
func Rotate(src *image.RGBA, degrees float64, bg color.RGBA) *image.RGBA {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return src
	}
	deg := math.Mod(degrees, 360)
	if deg < 0 {
		deg += 360
	}

	switch deg {
	case 0:
		return src
	case 90:
		return fromNRGBA(imaging.Rotate90(src))
	case 180:
		return fromNRGBA(imaging.Rotate180(src))
	case 270:
		return fromNRGBA(imaging.Rotate270(src))
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := RotatedSize(w, h, deg)

	sin, cos := math.Sincos(deg * math.Pi / 180)
	cx := float64(b.Min.X) + float64(w)/2
	cy := float64(b.Min.Y) + float64(h)/2
	ncx := float64(nw) / 2
	ncy := float64(nh) / 2

	// Source to destination: rotate about the source center, land on the
	// destination center. y grows downward, so +sin in the top row turns
	// content counter-clockwise on screen.
	s2d := f64.Aff3{
		cos, sin, ncx - cos*cx - sin*cy,
		-sin, cos, ncy + sin*cx - cos*cy,
	}

	dst := frame.Filled(nw, nh, bg)
	draw.ApproxBiLinear.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}

// Placement returns the top-left corner of a w x h image centered on a canvas
// of the given size and shifted by the offset.
func Placement(canvas image.Point, w, h, offsetX, offsetY int) image.Point {
	return image.Point{
		X: floorDiv(canvas.X-w, 2) + offsetX,
		Y: floorDiv(canvas.Y-h, 2) + offsetY,
	}
}

// Place copies img onto canvas at its centered, offset position. Only the
// region where both overlap is written.
func Place(canvas *image.RGBA, img *image.RGBA, offsetX, offsetY int) {
	cb := canvas.Bounds()
	ib := img.Bounds()
	at := Placement(cb.Size(), ib.Dx(), ib.Dy(), offsetX, offsetY).Add(cb.Min)

	dst := image.Rectangle{Min: at, Max: at.Add(ib.Size())}
	// draw.Draw clips dst to the canvas and shifts the source point to match.
	draw.Draw(canvas, dst, img, ib.Min, draw.Src)
}

// fromNRGBA reinterprets an opaque NRGBA image as RGBA; for alpha 255 the
// premultiplied and non-premultiplied encodings are identical.
func fromNRGBA(n *image.NRGBA) *image.RGBA {
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
