package source

import (
	"context"
	"fmt"
	"image"
	"sync"
)

// Decoder is a seekable frame reader, typically backed by a media library.
type Decoder interface {
	// Read returns the frame at the cursor and advances it. ok is false at end
	// of stream or on a decode failure.
	Read() (img *image.RGBA, ok bool)
	SetPosition(frame int) error
	Position() int
	FrameCount() int
	FPS() float64
	Close() error
}

// Video is a finite, seekable source.
type Video struct {
	name  string
	fps   float64
	total int

	mu  sync.Mutex
	dec Decoder
}

// NewVideo wraps a decoder. A missing or nonsensical frame rate becomes DefaultFPS.
func NewVideo(dec Decoder, name string) *Video {
	return &Video{
		name:  name,
		fps:   normalizeFPS(dec.FPS()),
		total: max(0, dec.FrameCount()),
		dec:   dec,
	}
}

func (v *Video) Kind() Kind   { return KindVideo }
func (v *Video) Name() string { return v.name }
func (v *Video) FPS() float64 { return v.fps }

// ReadNext decodes the next frame. Decode failures are reported as end of stream.
func (v *Video) ReadNext(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	img, ok := v.dec.Read()
	if !ok || img == nil {
		return nil, ErrEndOfStream
	}
	return img, nil
}

// Seek clamps index into range, decodes the frame there and restores the cursor
// to index, so repeated seeks to the same position are idempotent.
func (v *Video) Seek(index int) (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	index = v.clamp(index)
	if err := v.dec.SetPosition(index); err != nil {
		return nil, fmt.Errorf("%w: seek to %d: %v", ErrDecode, index, err)
	}
	img, ok := v.dec.Read()
	if err := v.dec.SetPosition(index); err != nil {
		return nil, fmt.Errorf("%w: seek to %d: %v", ErrDecode, index, err)
	}
	if !ok || img == nil {
		return nil, fmt.Errorf("%w: no frame at %d", ErrDecode, index)
	}
	return img, nil
}

// Rewind moves the cursor back to the first frame.
func (v *Video) Rewind() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dec.SetPosition(0)
}

func (v *Video) Position() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dec.Position(), v.total
}

func (v *Video) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dec.Close()
}

func (v *Video) clamp(index int) int {
	if v.total > 0 && index >= v.total {
		index = v.total - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}
