package overlay

import (
	"image"

	"github.com/bryanchriswhite/FlexiView/internal/params"
)

// GuideThickness is the outline width in preview pixels.
const GuideThickness = 2

// GuideRect maps a guide given in monitor pixels relative to the monitor
// center onto a canvas of the given size at scale s.
func GuideRect(g params.GuideRectangle, s float64, canvas image.Point) image.Rectangle {
	cx := float64(canvas.X)/2 + float64(g.X)*s
	cy := float64(canvas.Y)/2 + float64(g.Y)*s
	w := float64(g.Width) * s
	h := float64(g.Height) * s
	return image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))
}

// DrawGuide outlines the guide rectangle on img when it is enabled.
func DrawGuide(img *image.RGBA, g params.GuideRectangle, s float64) {
	if !g.Enabled {
		return
	}
	r := GuideRect(g, s, img.Bounds().Size())
	// Keep a minimum visible box for tiny scales.
	if r.Dx() < GuideThickness*2 {
		r.Max.X = r.Min.X + GuideThickness*2
	}
	if r.Dy() < GuideThickness*2 {
		r.Max.Y = r.Min.Y + GuideThickness*2
	}
	StrokeRect(img, r, GuideThickness, g.Color)
}
