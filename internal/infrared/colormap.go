package infrared

import (
	"image"
	"image/color"
	"math"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
)

type lut [256]color.RGBA

var (
	greenLUT = buildLUT(func(v float64) (r, g, b float64) { return 0, v, 0 })

	heatLUT = buildLUT(func(v float64) (r, g, b float64) {
		return 3 * v, 3*v - 1, 3*v - 2
	})

	jetLUT = buildLUT(func(v float64) (r, g, b float64) {
		return 1.5 - math.Abs(4*v-3), 1.5 - math.Abs(4*v-2), 1.5 - math.Abs(4*v-1)
	})
)

// buildLUT samples fn over [0,1]; outputs are clamped to [0,1].
func buildLUT(fn func(v float64) (r, g, b float64)) *lut {
	var t lut
	for i := range t {
		r, g, b := fn(float64(i) / 255)
		t[i] = color.RGBA{R: unit(r), G: unit(g), B: unit(b), A: 255}
	}
	return &t
}

func unit(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Colorize applies m to the luma of img. MappingNone returns an opaque copy.
func Colorize(img image.Image, m ColorMapping) *image.RGBA {
	var table *lut
	switch m {
	case MappingGreen:
		table = greenLUT
	case MappingHeat:
		table = heatLUT
	case MappingJet:
		table = jetLUT
	default:
		return frame.Clone(img)
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			l := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			dst.SetRGBA(x, y, table[l])
		}
	}
	return dst
}

// MeanLuma returns the average 8-bit luma of img, or 0 for an empty image.
func MeanLuma(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n <= 0 {
		return 0
	}
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += uint64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return float64(sum) / float64(n)
}
