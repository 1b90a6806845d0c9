package params

import (
	"image/color"
	"sync"
)

// GuideRectangle is the alignment outline drawn on the preview only.
// X and Y are offsets of the rectangle center from the canvas center, in monitor pixels.
type GuideRectangle struct {
	Enabled bool       `json:"enabled" yaml:"enabled"`
	X       int        `json:"x" yaml:"x"`
	Y       int        `json:"y" yaml:"y"`
	Width   int        `json:"width" yaml:"width"`
	Height  int        `json:"height" yaml:"height"`
	Color   color.RGBA `json:"-" yaml:"-"`
}

// GuideGreen is the default outline color.
var GuideGreen = color.RGBA{G: 255, A: 255}

// DefaultGuide returns a disabled 800x600 green guide centered on the canvas.
func DefaultGuide() GuideRectangle {
	return GuideRectangle{
		Width:  800,
		Height: 600,
		Color:  GuideGreen,
	}
}

func (g GuideRectangle) normalized() GuideRectangle {
	if g.Width < 1 {
		g.Width = 1
	}
	if g.Height < 1 {
		g.Height = 1
	}
	if g.Color.A == 0 {
		g.Color = GuideGreen
	}
	return g
}

// Guide holds the shared guide rectangle.
type Guide struct {
	mu    sync.RWMutex
	guide GuideRectangle
}

func NewGuide() *Guide {
	return &Guide{guide: DefaultGuide()}
}

// Get returns a copy of the current guide.
func (g *Guide) Get() GuideRectangle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.guide
}

// Set replaces the guide. Non-positive sizes become 1 and a zero color becomes green.
func (g *Guide) Set(r GuideRectangle) {
	g.mu.Lock()
	g.guide = r.normalized()
	g.mu.Unlock()
}

// Update applies fn to a copy of the guide and stores the result.
func (g *Guide) Update(fn func(*GuideRectangle)) GuideRectangle {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := g.guide
	fn(&next)
	g.guide = next.normalized()
	return g.guide
}
