package v4l2

import (
	"image"

	"github.com/bryanchriswhite/FlexiView/internal/infrared"
)

// Illumination tags frames from emitter-strobing IR cameras. The emitter is
// on for every other frame, so a frame brighter than its predecessor by more
// than Threshold is illuminated; within the threshold the previous tag flips.
type Illumination struct {
	Threshold float64

	prev   float64
	last   bool
	primed bool
}

func (t *Illumination) Tag(img image.Image) bool {
	mean := infrared.MeanLuma(img)
	threshold := t.Threshold
	if threshold == 0 {
		threshold = 4
	}

	var lit bool
	switch {
	case !t.primed:
		lit = false
		t.primed = true
	case mean-t.prev > threshold:
		lit = true
	case t.prev-mean > threshold:
		lit = false
	default:
		lit = !t.last
	}
	t.prev = mean
	t.last = lit
	return lit
}
