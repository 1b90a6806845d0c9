package preview_test

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/overlay"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/preview"
	"github.com/bryanchriswhite/FlexiView/internal/transform"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	black = color.RGBA{A: 255}
)

func TestScale(t *testing.T) {
	assert.InDelta(t, 800.0/1920, preview.Scale(image.Pt(1920, 1080), image.Pt(800, 450)), 1e-9)
	// Limited by height for a portrait monitor.
	assert.InDelta(t, 0.25, preview.Scale(image.Pt(1000, 1800), image.Pt(800, 450)), 1e-9)
	assert.Equal(t, 1.0, preview.Scale(image.Pt(0, 0), image.Pt(800, 450)))
}

func TestProcessedParams(t *testing.T) {
	p := params.Defaults()
	p.Scale = 2
	p.OffsetX = 7
	p.OffsetY = -7
	q := preview.Processed(p, 0.5)
	assert.Equal(t, 1.0, q.Scale)
	assert.Equal(t, 3, q.OffsetX)
	assert.Equal(t, -3, q.OffsetY, "truncated toward zero")
}

func TestProcessedMatchesScaledDisplay(t *testing.T) {
	src := frame.Filled(40, 20, red)
	p := params.Defaults()
	p.Scale = 2
	p.OffsetX = 100

	mon := image.Pt(400, 200)
	size := image.Pt(200, 100)
	img := preview.Render(src, p, params.DefaultGuide(), mon, size, true)
	require.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	// On the monitor the frame is 80x40 centered then shifted right 100.
	full := transform.Compose(src, p, mon)
	assert.Equal(t, red, full.RGBAAt(260+39, 100))

	// Preview at half scale: 40x20 centered then shifted right 50.
	assert.Equal(t, red, img.RGBAAt(130+19, 50))
	assert.Equal(t, p.BackgroundColor, img.RGBAAt(100, 50))
}

func TestRawModeFitsOnBlack(t *testing.T) {
	src := frame.Filled(100, 100, red)
	p := params.Defaults()
	p.Scale = 5
	p.Rotation = 45
	p.BackgroundColor = color.RGBA{B: 255, A: 255}

	img := preview.Render(src, p, params.DefaultGuide(), image.Pt(1920, 1080), image.Pt(200, 100), false)
	// 100x100 fits as 100x100 centered at 50..150.
	assert.Equal(t, black, img.RGBAAt(10, 50))
	assert.Equal(t, black, img.RGBAAt(190, 50))
	assert.Equal(t, uint8(255), img.RGBAAt(100, 50).R)

	empty := preview.Render(nil, p, params.DefaultGuide(), image.Pt(1920, 1080), image.Pt(20, 10), false)
	assert.Equal(t, black, empty.RGBAAt(5, 5))
}

func TestGuideDrawnInBothModes(t *testing.T) {
	g := params.DefaultGuide()
	g.Enabled = true
	g.Width, g.Height = 960, 540

	for _, processed := range []bool{true, false} {
		img := preview.Render(nil, params.Defaults(), g, image.Pt(1600, 900), image.Pt(800, 450), processed)
		// 960x540 at scale 0.5 is 480x270 centered: 160..640, 90..360.
		assert.Equal(t, params.GuideGreen, img.RGBAAt(160, 200), "processed=%v", processed)
		assert.Equal(t, params.GuideGreen, img.RGBAAt(639, 200), "processed=%v", processed)
		assert.Equal(t, params.GuideGreen, img.RGBAAt(400, 90), "processed=%v", processed)
		assert.NotEqual(t, params.GuideGreen, img.RGBAAt(400, 225))
	}
}

func TestStreamWritesFrames(t *testing.T) {
	slot := frame.NewSlot()
	slot.Publish(frame.Filled(16, 9, red))
	out := output.NewDiscard()
	ov := overlay.NewManager()
	require.NoError(t, ov.AddWidget(overlay.NewStatusWidget("status")))

	s := preview.NewStream(preview.Options{
		Slot:    slot,
		Display: params.NewDisplay(),
		Guide:   params.NewGuide(),
		Monitor: func() monitor.Descriptor { return monitor.Descriptor{Width: 160, Height: 90} },
		Status:  func() string { return "playing" },
		Output:  out,
		Overlay: ov,
		Width:   80,
		Height:  45,
		FPS:     200,
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.True(t, out.IsRunning())

	require.Eventually(t, func() bool { return out.Frames() > 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, image.Pt(80, 45), out.LastSize())

	s.SetSize(40, 20)
	s.SetSize(0, 10)
	assert.Equal(t, image.Pt(40, 20), s.Size())
	require.Eventually(t, func() bool { return out.LastSize() == image.Pt(40, 20) }, time.Second, 5*time.Millisecond)

	s.SetProcessed(true)
	assert.True(t, s.Processed())

	s.Stop()
	assert.False(t, s.IsRunning())
}
