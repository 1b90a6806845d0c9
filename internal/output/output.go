package output

import (
	"image"
	"sync"
	"sync/atomic"
)

// Output is a sink for composed frames:
// - X11 window on a physical monitor
// - MJPEG HTTP stream for the preview
// - Discard for headless runs
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	Width   int
	Height  int
	FPS     int
	Quality int
}

// Discard accepts frames and keeps only a count and the last frame size.
type Discard struct {
	mu      sync.Mutex
	running bool
	last    image.Point
	frames  atomic.Uint64
}

func NewDiscard() *Discard { return &Discard{} }

func (d *Discard) Start() error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	return nil
}

func (d *Discard) Stop() error {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

func (d *Discard) WriteFrame(frame *image.RGBA) error {
	d.frames.Add(1)
	d.mu.Lock()
	d.last = frame.Bounds().Size()
	d.mu.Unlock()
	return nil
}

func (d *Discard) Name() string { return "Discard" }

func (d *Discard) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Discard) Frames() uint64 { return d.frames.Load() }

func (d *Discard) LastSize() image.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
