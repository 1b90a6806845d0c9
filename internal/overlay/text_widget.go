package overlay

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidget draws a line of text, optionally on a background box. With
// FromStatus set it shows the scene's status line instead of fixed text.
type TextWidget struct {
	*BaseWidget

	mu         sync.RWMutex
	text       string
	fromStatus bool
	textColor  color.RGBA
	bgColor    *color.RGBA // Optional background color
	padding    int
}

// TextOptions configures a TextWidget.
type TextOptions struct {
	X, Y       int
	Opacity    float64
	Text       string
	FromStatus bool
	Color      color.RGBA
	Background *color.RGBA
	Padding    int
}

// NewTextWidget creates a new text widget
func NewTextWidget(id string, opts TextOptions) *TextWidget {
	if opts.Opacity == 0 {
		opts.Opacity = 1
	}
	if opts.Color == (color.RGBA{}) {
		opts.Color = color.RGBA{255, 255, 255, 255}
	}
	if opts.Padding == 0 {
		opts.Padding = 5
	}
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, opts.X, opts.Y, opts.Opacity),
		text:       opts.Text,
		fromStatus: opts.FromStatus,
		textColor:  opts.Color,
		bgColor:    opts.Background,
		padding:    opts.Padding,
	}
}

// NewStatusWidget shows the playback status line in the top-left corner.
func NewStatusWidget(id string) *TextWidget {
	return NewTextWidget(id, TextOptions{
		X:          8,
		Y:          8,
		FromStatus: true,
		Background: &color.RGBA{0, 0, 0, 160},
	})
}

func (w *TextWidget) Type() string {
	if w.fromStatus {
		return "status"
	}
	return "text"
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA, scene Scene) error {
	w.mu.RLock()
	text, fg, bg, pad := w.text, w.textColor, w.bgColor, w.padding
	if w.fromStatus {
		text = scene.Status
	}
	w.mu.RUnlock()

	if !w.IsEnabled() || text == "" {
		return nil
	}
	x, y := w.Position()
	opacity := w.Opacity()

	face := basicfont.Face7x13
	lineHeight := face.Height
	d := &font.Drawer{Face: face}
	textWidth := d.MeasureString(text).Ceil()

	if bg != nil {
		DrawRectangle(img, x, y, textWidth+pad*2, lineHeight+pad*2, *bg, opacity)
	}

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, lineHeight))
	textDrawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	textDrawer.DrawString(text)

	BlendImage(img, textImg, x+pad, y+pad, opacity)
	return nil
}

func (w *TextWidget) SetText(text string) {
	w.mu.Lock()
	w.text = text
	w.mu.Unlock()
}

func (w *TextWidget) Text() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.text
}

func (w *TextWidget) SetColor(c color.RGBA) {
	w.mu.Lock()
	w.textColor = c
	w.mu.Unlock()
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.mu.Lock()
	w.bgColor = c
	w.mu.Unlock()
}
