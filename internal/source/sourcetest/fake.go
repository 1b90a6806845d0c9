// Package sourcetest provides in-memory decoders and capturers for tests.
package sourcetest

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
)

// Frames returns n distinct 4x4 frames; frame i has red channel i.
func Frames(n int) []*image.RGBA {
	out := make([]*image.RGBA, n)
	for i := range out {
		out[i] = frame.Filled(4, 4, color.RGBA{R: uint8(i), A: 255})
	}
	return out
}

// FrameIndex recovers the index encoded by Frames.
func FrameIndex(img *image.RGBA) int {
	return int(img.RGBAAt(0, 0).R)
}

// Decoder is an in-memory source.Decoder.
type Decoder struct {
	mu     sync.Mutex
	frames []*image.RGBA
	pos    int
	fps    float64
	reads  int
	closed bool

	// FailAt makes Read fail when the cursor is at one of these indices.
	FailAt map[int]bool
}

func NewDecoder(frames []*image.RGBA, fps float64) *Decoder {
	return &Decoder{frames: frames, fps: fps, FailAt: map[int]bool{}}
}

func (d *Decoder) Read() (*image.RGBA, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.pos >= len(d.frames) || d.FailAt[d.pos] {
		return nil, false
	}
	img := frame.Clone(d.frames[d.pos])
	d.pos++
	return img, true
}

func (d *Decoder) SetPosition(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i > len(d.frames) {
		return errors.New("position out of range")
	}
	d.pos = i
	return nil
}

func (d *Decoder) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *Decoder) FrameCount() int { return len(d.frames) }

func (d *Decoder) FPS() float64 { return d.fps }

func (d *Decoder) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *Decoder) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Decoder) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Capturer is an in-memory source.Capturer that replays frames forever.
// Each entry of Fail marks a read (by ordinal) that fails.
type Capturer struct {
	mu     sync.Mutex
	frames []*image.RGBA
	n      int
	closed bool

	Fail map[int]bool
}

func NewCapturer(frames []*image.RGBA) *Capturer {
	return &Capturer{frames: frames, Fail: map[int]bool{}}
}

func (c *Capturer) Read() (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.n
	c.n++
	if c.closed || len(c.frames) == 0 || c.Fail[n] {
		return nil, false
	}
	return frame.Clone(c.frames[n%len(c.frames)]), true
}

func (c *Capturer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Reads counts calls to Read.
func (c *Capturer) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *Capturer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
