package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/params"
)

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
)

// gradient returns a w x h image where every pixel is distinct.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func identity() params.DisplayParameters {
	return params.Defaults()
}

func TestComposeIdentity(t *testing.T) {
	src := gradient(64, 48)
	out := Compose(src, identity(), image.Pt(64, 48))
	assert.Equal(t, src.Pix, out.Pix)
}

func TestComposeNilSource(t *testing.T) {
	p := identity()
	p.BackgroundColor = color.RGBA{R: 1, G: 2, B: 3, A: 255}
	out := Compose(nil, p, image.Pt(30, 20))
	require.Equal(t, image.Rect(0, 0, 30, 20), out.Bounds())
	assert.Equal(t, p.BackgroundColor, out.RGBAAt(29, 19))
}

func TestComposeCanvasSizeIsExact(t *testing.T) {
	src := gradient(40, 30)
	cases := []params.DisplayParameters{
		{Scale: 3, Rotation: 33, OffsetX: 500, BackgroundColor: black},
		{Scale: 0.1, Rotation: -720, OffsetY: -9000, BackgroundColor: black},
		{Scale: 1, Rotation: 90, MirrorHorizontal: true, MirrorVertical: true, BackgroundColor: black},
	}
	for _, p := range cases {
		out := Compose(src, p, image.Pt(123, 77))
		assert.Equal(t, image.Rect(0, 0, 123, 77), out.Bounds())
	}
}

func TestRotatedSize(t *testing.T) {
	w, h := RotatedSize(100, 50, 90)
	assert.Equal(t, 50, w)
	assert.Equal(t, 100, h)

	w, h = RotatedSize(100, 50, 45)
	assert.Equal(t, 106, w)
	assert.Equal(t, 106, h)

	w, h = RotatedSize(100, 50, 0)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestRotate180EqualsDoubleMirror(t *testing.T) {
	src := gradient(9, 5)
	want := Mirror(src, true, true)
	for _, deg := range []float64{180, -180, 540} {
		got := Rotate(src, deg, black)
		assert.Equal(t, want.Pix, got.Pix, "rotation %v", deg)
	}
}

func TestRotate90IsCounterClockwise(t *testing.T) {
	src := frame.Filled(3, 1, black)
	src.SetRGBA(2, 0, red)

	got := Rotate(src, 90, black)
	require.Equal(t, image.Rect(0, 0, 1, 3), got.Bounds())
	assert.Equal(t, red, got.RGBAAt(0, 0))
	assert.Equal(t, black, got.RGBAAt(0, 2))

	got = Rotate(src, -90, black)
	assert.Equal(t, red, got.RGBAAt(0, 2))
}

func TestArbitraryRotationMatchesQuarterTurnDirection(t *testing.T) {
	// Right half red, left half blue. A near-90 degree turn through the
	// affine path must put red on top like the exact quarter turn does.
	src := frame.Filled(20, 10, blue)
	for y := 0; y < 10; y++ {
		for x := 10; x < 20; x++ {
			src.SetRGBA(x, y, red)
		}
	}

	got := Rotate(src, 90.0001, black)
	require.Equal(t, image.Rect(0, 0, 10, 20), got.Bounds())

	top := got.RGBAAt(5, 3)
	bottom := got.RGBAAt(5, 16)
	assert.Greater(t, top.R, top.B)
	assert.Greater(t, bottom.B, bottom.R)
}

func TestMirror(t *testing.T) {
	src := frame.Filled(4, 3, black)
	src.SetRGBA(0, 0, red)

	h := Mirror(src, true, false)
	assert.Equal(t, red, h.RGBAAt(3, 0))

	v := Mirror(src, false, true)
	assert.Equal(t, red, v.RGBAAt(0, 2))

	both := Mirror(src, true, true)
	assert.Equal(t, red, both.RGBAAt(3, 2))

	assert.Same(t, src, Mirror(src, false, false))
}

func TestScale(t *testing.T) {
	src := gradient(10, 6)

	up := Scale(src, 2.5)
	assert.Equal(t, image.Rect(0, 0, 25, 15), up.Bounds())

	// Degenerate result sizes leave the frame unscaled.
	assert.Same(t, src, Scale(src, 0.01))
	assert.Same(t, src, Scale(src, 0))
	assert.Same(t, src, Scale(src, -1))
	assert.Same(t, src, Scale(src, 1))
}

func TestScaledSizeIsCapped(t *testing.T) {
	w, h, ok := ScaledSize(1000, 500, 50)
	require.True(t, ok)
	assert.Equal(t, MaxDimension, w)
	assert.Equal(t, MaxDimension/2, h)
}

func TestPlaceWithOffset(t *testing.T) {
	p := identity()
	p.OffsetX, p.OffsetY = 5, -3
	out := Compose(frame.Filled(10, 10, red), p, image.Pt(100, 100))

	// Centered at (45, 45), shifted to (50, 42).
	assert.Equal(t, red, out.RGBAAt(50, 42))
	assert.Equal(t, red, out.RGBAAt(59, 51))
	assert.Equal(t, black, out.RGBAAt(49, 42))
	assert.Equal(t, black, out.RGBAAt(60, 51))
	assert.Equal(t, black, out.RGBAAt(50, 41))
	assert.Equal(t, black, out.RGBAAt(50, 52))
}

func TestPlacePartiallyOffCanvas(t *testing.T) {
	p := identity()
	p.OffsetX = -48
	out := Compose(frame.Filled(10, 10, red), p, image.Pt(100, 100))

	// Center placement puts x at 45; shifted by -48 only columns 0..6 remain.
	assert.Equal(t, red, out.RGBAAt(0, 50))
	assert.Equal(t, red, out.RGBAAt(6, 50))
	assert.Equal(t, black, out.RGBAAt(7, 50))
}

func TestPlaceFullyOffCanvas(t *testing.T) {
	p := identity()
	p.OffsetX, p.OffsetY = 10000, -10000
	out := Compose(frame.Filled(10, 10, red), p, image.Pt(50, 40))

	for i := 0; i < len(out.Pix); i += 4 {
		require.Equal(t, []uint8{0, 0, 0, 255}, out.Pix[i:i+4])
	}
}

func TestPlacementUsesFloorDivision(t *testing.T) {
	// A 15 pixel image on a 10 pixel canvas starts at floor(-5/2) = -3.
	at := Placement(image.Pt(10, 10), 15, 15, 0, 0)
	assert.Equal(t, image.Pt(-3, -3), at)
}

func TestScaledRotatedSquareOnCanvas(t *testing.T) {
	p := identity()
	p.Scale = 2
	p.Rotation = 45
	out := Compose(frame.Filled(100, 100, white), p, image.Pt(800, 600))

	require.Equal(t, image.Rect(0, 0, 800, 600), out.Bounds())
	assert.Equal(t, white, out.RGBAAt(400, 300))
	assert.Equal(t, white, out.RGBAAt(400, 300-120))
	assert.Equal(t, white, out.RGBAAt(400+120, 300))
	// Outside the diamond |dx|+|dy| <= ~141.
	assert.Equal(t, black, out.RGBAAt(400-110, 300-110))
	assert.Equal(t, black, out.RGBAAt(0, 0))
	assert.Equal(t, black, out.RGBAAt(799, 599))

	for y := 0; y < 600; y++ {
		for x := 0; x < 250; x++ {
			require.Equal(t, black, out.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

// composeFull renders without limiting the scaled image to the visible band.
func composeFull(src *image.RGBA, p params.DisplayParameters, size image.Point) *image.RGBA {
	canvas := frame.Filled(size.X, size.Y, p.BackgroundColor)
	img := Mirror(src, p.MirrorHorizontal, p.MirrorVertical)
	img = Scale(img, p.Scale)
	img = Rotate(img, p.Rotation, p.BackgroundColor)
	Place(canvas, img, p.OffsetX, p.OffsetY)
	return canvas
}

func TestLargeScaleMatchesFullRender(t *testing.T) {
	src := gradient(40, 30)
	size := image.Pt(24, 18)
	for _, rot := range []float64{0, 90, 180, 270} {
		for _, off := range []image.Point{{}, {X: 7, Y: -5}, {X: -31, Y: 12}} {
			p := identity()
			p.Scale = 20
			p.Rotation = rot
			p.OffsetX, p.OffsetY = off.X, off.Y
			p.MirrorHorizontal = true

			want := composeFull(src, p, size)
			got := Compose(src, p, size)
			require.Equal(t, want.Pix, got.Pix, "rotation %v offset %v", rot, off)
		}
	}
}

func TestLargeScaleAllocatesVisibleBand(t *testing.T) {
	p := identity()
	p.Scale = params.MaxScale
	canvas := image.Pt(192, 108)

	img := scaleVisible(gradient(192, 108), p, canvas)
	b := img.Bounds()
	assert.Equal(t, 9600/2, (b.Min.X+b.Max.X)/2, "band stays centered")
	assert.Equal(t, 5400/2, (b.Min.Y+b.Max.Y)/2)
	assert.LessOrEqual(t, b.Dx(), canvas.X+2*cropMargin+2)
	assert.LessOrEqual(t, b.Dy(), canvas.Y+2*cropMargin+2)

	p.Rotation = 45
	img = scaleVisible(gradient(192, 108), p, canvas)
	assert.Less(t, img.Bounds().Dx(), 2*canvas.X)

	out := Compose(gradient(1920, 1080), p, image.Pt(1920, 1080))
	assert.Equal(t, image.Rect(0, 0, 1920, 1080), out.Bounds())
}
