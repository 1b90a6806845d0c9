package overlay

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// Scene carries per-frame data widgets may render.
type Scene struct {
	// Scale maps monitor pixels to preview pixels.
	Scale float64
	// Status is a one-line summary of the playback state.
	Status string
}

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget onto img
	Render(img *image.RGBA, scene Scene) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	mu      sync.RWMutex
	id      string
	enabled bool
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, x, y int, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true, x: x, y: y}
	w.SetOpacity(opacity)
	return w
}

func (w *BaseWidget) ID() string {
	return w.id
}

func (w *BaseWidget) IsEnabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

func (w *BaseWidget) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
}

// Position returns the widget's top-left corner in preview pixels
func (w *BaseWidget) Position() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.x, w.y
}

func (w *BaseWidget) SetPosition(x, y int) {
	w.mu.Lock()
	w.x, w.y = x, y
	w.mu.Unlock()
}

func (w *BaseWidget) Opacity() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.opacity
}

// SetOpacity clamps opacity to [0, 1]
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.mu.Lock()
	w.opacity = opacity
	w.mu.Unlock()
}

// BlendImage composites src over dst with its top-left at (x, y), scaling
// src alpha by opacity. Pixels outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	r := src.Bounds().Sub(src.Bounds().Min).Add(image.Pt(x, y))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.Color, opacity float64) {
	if width <= 0 || height <= 0 || opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	draw.DrawMask(dst, image.Rect(x, y, x+width, y+height), &image.Uniform{C: c}, image.Point{}, mask, image.Point{}, draw.Over)
}

// StrokeRect draws an opaque outline of the given thickness just inside r.
func StrokeRect(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	r = r.Canon()
	if r.Empty() || thickness <= 0 {
		return
	}
	u := &image.Uniform{C: c}
	t := thickness
	sides := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, s := range sides {
		draw.Draw(dst, s.Intersect(r), u, image.Point{}, draw.Src)
	}
}
