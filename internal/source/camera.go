package source

import (
	"context"
	"image"
	"sync"
)

// Capturer is a live device that blocks in Read until a frame arrives.
type Capturer interface {
	Read() (img *image.RGBA, ok bool)
	Close() error
}

// Camera is an unbounded live source without a frame index.
type Camera struct {
	name string

	mu  sync.Mutex
	cap Capturer
}

func NewCamera(c Capturer, name string) *Camera {
	return &Camera{name: name, cap: c}
}

func (c *Camera) Kind() Kind   { return KindCamera }
func (c *Camera) Name() string { return c.name }
func (c *Camera) FPS() float64 { return DefaultFPS }

// ReadNext returns ErrNoFrame on a failed read so the caller can retry.
func (c *Camera) ReadNext(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.cap.Read()
	if !ok || img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

func (c *Camera) Seek(int) (*image.RGBA, error) { return nil, ErrSeekUnsupported }

func (c *Camera) Position() (int, int) { return 0, 0 }

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cap.Close()
}
