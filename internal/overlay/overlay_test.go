package overlay

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/params"
)

var black = color.RGBA{A: 255}

func TestGuideRectMapping(t *testing.T) {
	g := params.GuideRectangle{Enabled: true, X: 100, Y: -50, Width: 800, Height: 600}
	// 1920x1080 monitor into an 800x450 preview.
	s := 800.0 / 1920.0
	r := GuideRect(g, s, image.Pt(800, 450))

	cx := 400 + 100*s
	cy := 225 - 50*s
	assert.Equal(t, int(cx-800*s/2), r.Min.X)
	assert.Equal(t, int(cy-600*s/2), r.Min.Y)
	assert.Equal(t, int(cx+800*s/2), r.Max.X)
	assert.Equal(t, int(cy+600*s/2), r.Max.Y)
}

func TestDrawGuideOutline(t *testing.T) {
	img := frame.Filled(100, 100, black)
	g := params.GuideRectangle{Enabled: true, Width: 40, Height: 20, Color: params.GuideGreen}
	DrawGuide(img, g, 1)

	// Box spans 30..70 x 40..60.
	assert.Equal(t, params.GuideGreen, img.RGBAAt(30, 40))
	assert.Equal(t, params.GuideGreen, img.RGBAAt(31, 50))
	assert.Equal(t, params.GuideGreen, img.RGBAAt(69, 59))
	assert.Equal(t, black, img.RGBAAt(32, 50), "interior untouched")
	assert.Equal(t, black, img.RGBAAt(50, 50))
	assert.Equal(t, black, img.RGBAAt(29, 40))
}

func TestDrawGuideDisabled(t *testing.T) {
	img := frame.Filled(10, 10, black)
	DrawGuide(img, params.GuideRectangle{Width: 4, Height: 4, Color: params.GuideGreen}, 1)
	for _, p := range []image.Point{{3, 3}, {5, 5}} {
		assert.Equal(t, black, img.RGBAAt(p.X, p.Y))
	}
}

func TestDrawGuideClipsOffscreen(t *testing.T) {
	img := frame.Filled(10, 10, black)
	g := params.GuideRectangle{Enabled: true, X: 1000, Y: 1000, Width: 5, Height: 5, Color: params.GuideGreen}
	assert.NotPanics(t, func() { DrawGuide(img, g, 1) })
}

func TestBlendOpacity(t *testing.T) {
	dst := frame.Filled(4, 4, black)
	src := frame.Filled(2, 2, color.RGBA{R: 255, A: 255})
	BlendImage(dst, src, 1, 1, 0.5)

	assert.Equal(t, black, dst.RGBAAt(0, 0))
	got := dst.RGBAAt(1, 1)
	assert.InDelta(t, 127, int(got.R), 2)
	assert.Equal(t, uint8(255), got.A)

	// Clipped at the edge without panicking.
	BlendImage(dst, src, 3, 3, 1)
	assert.Equal(t, uint8(255), dst.RGBAAt(3, 3).R)
}

type stubWidget struct {
	*BaseWidget
	calls int
	err   error
}

func (s *stubWidget) Type() string { return "stub" }

func (s *stubWidget) Render(*image.RGBA, Scene) error {
	s.calls++
	return s.err
}

func TestManagerOrderAndErrors(t *testing.T) {
	m := NewManager()
	a := &stubWidget{BaseWidget: NewBaseWidget("a", 0, 0, 1), err: errors.New("boom")}
	b := &stubWidget{BaseWidget: NewBaseWidget("b", 0, 0, 1)}
	require.NoError(t, m.AddWidget(a))
	require.NoError(t, m.AddWidget(b))
	assert.Error(t, m.AddWidget(a))

	m.Render(frame.Filled(2, 2, black), Scene{})
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls, "an erroring widget does not stop the rest")

	b.SetEnabled(false)
	m.Render(frame.Filled(2, 2, black), Scene{})
	assert.Equal(t, 1, b.calls)

	m.SetEnabled(false)
	m.Render(frame.Filled(2, 2, black), Scene{})
	assert.Equal(t, 2, a.calls)

	require.NoError(t, m.RemoveWidget("a"))
	assert.Error(t, m.RemoveWidget("a"))
	assert.Len(t, m.Widgets(), 1)
}

func TestStatusWidgetRendersText(t *testing.T) {
	img := frame.Filled(200, 40, black)
	w := NewStatusWidget("status")
	require.NoError(t, w.Render(img, Scene{Status: "playing clip.mp4"}))

	var lit int
	for y := 0; y < 40; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y).R > 128 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 0)

	blank := frame.Filled(200, 40, black)
	require.NoError(t, w.Render(blank, Scene{}))
	assert.Equal(t, black, blank.RGBAAt(10, 10))
}
