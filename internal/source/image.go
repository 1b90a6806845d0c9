package source

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
)

// Image is a single still frame.
type Image struct {
	name  string
	frame *image.RGBA

	mu        sync.Mutex
	delivered bool
}

// OpenImage decodes a still image from disk.
func OpenImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}
	return NewImage(filepath.Base(path), img), nil
}

// NewImage wraps an already decoded image.
func NewImage(name string, img image.Image) *Image {
	return &Image{name: name, frame: frame.Clone(img)}
}

func (s *Image) Kind() Kind   { return KindImage }
func (s *Image) Name() string { return s.name }

// Frame returns a copy of the still.
func (s *Image) Frame() *image.RGBA {
	return frame.Clone(s.frame)
}

// ReadNext yields the still once, then ErrNoFrame.
func (s *Image) ReadNext(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered {
		return nil, ErrNoFrame
	}
	s.delivered = true
	return frame.Clone(s.frame), nil
}

func (s *Image) Seek(int) (*image.RGBA, error) { return nil, ErrSeekUnsupported }

func (s *Image) Position() (int, int) { return 0, 1 }

func (s *Image) FPS() float64 { return 0 }

func (s *Image) Close() error { return nil }
