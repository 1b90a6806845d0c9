// Package preview renders the operator preview: a scaled-down replica of
// what the presentation surface shows, plus the alignment guide.
package preview

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/overlay"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/transform"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 450
)

var black = color.RGBA{A: 255}

// Scale maps monitor pixels to preview pixels: min(pw/mw, ph/mh).
func Scale(mon, size image.Point) float64 {
	if mon.X <= 0 || mon.Y <= 0 || size.X <= 0 || size.Y <= 0 {
		return 1
	}
	sx := float64(size.X) / float64(mon.X)
	sy := float64(size.Y) / float64(mon.Y)
	if sy < sx {
		return sy
	}
	return sx
}

// Processed returns p adjusted for a preview at scale s. Offsets are
// truncated toward zero.
func Processed(p params.DisplayParameters, s float64) params.DisplayParameters {
	p.Scale *= s
	p.OffsetX = int(float64(p.OffsetX) * s)
	p.OffsetY = int(float64(p.OffsetY) * s)
	return p
}

// Render draws one preview frame of the given size. In processed mode the
// display pipeline runs with preview-scaled geometry; otherwise src is fit
// onto black untransformed. The guide is drawn last in both modes.
func Render(src *image.RGBA, p params.DisplayParameters, g params.GuideRectangle, mon, size image.Point, processed bool) *image.RGBA {
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(DefaultWidth, DefaultHeight)
	}
	s := Scale(mon, size)

	var out *image.RGBA
	if processed {
		out = transform.Compose(src, Processed(p, s), size)
	} else {
		out = fit(src, size)
	}
	overlay.DrawGuide(out, g, s)
	return out
}

// fit scales src to fit size preserving aspect ratio, centered on black.
func fit(src *image.RGBA, size image.Point) *image.RGBA {
	if src == nil || src.Bounds().Empty() {
		return frame.Filled(size.X, size.Y, black)
	}
	b := src.Bounds()
	f := Scale(b.Size(), size)
	w := int(float64(b.Dx()) * f)
	h := int(float64(b.Dy()) * f)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	resized := imaging.Resize(src, w, h, imaging.Linear)
	bg := imaging.New(size.X, size.Y, black)
	return frame.ToRGBA(imaging.PasteCenter(bg, resized))
}
