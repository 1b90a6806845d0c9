// Package source defines the frame producers that feed the shared frame slot:
// still images, video files, live cameras and (in package infrared) IR cameras.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrOpen reports a missing or corrupt file or an unavailable device.
	ErrOpen = errors.New("open failed")

	// ErrDecode reports a transient read failure in the middle of a stream.
	ErrDecode = errors.New("decode failed")

	// ErrNoFrame means no frame is available right now; callers may retry.
	ErrNoFrame = errors.New("no frame available")

	// ErrSeekUnsupported is returned by sources without a frame index.
	ErrSeekUnsupported = errors.New("seek not supported by this source")

	// ErrUnsupportedFormat is returned for file extensions no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEndOfStream marks the end of a finite source.
	ErrEndOfStream = io.EOF
)

// DefaultFPS is used when a source reports no usable frame rate.
const DefaultFPS = 30.0

// Kind identifies the source variant behind a session.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindVideo
	KindCamera
	KindInfrared
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindCamera:
		return "camera"
	case KindInfrared:
		return "infrared"
	default:
		return "none"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindNone; c <= KindInfrared; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown source kind %q", b)
}

// Source produces frames for a playback session.
type Source interface {
	Kind() Kind
	Name() string

	// ReadNext returns the next frame. Finite sources return ErrEndOfStream
	// when exhausted; live sources return ErrNoFrame when nothing is ready.
	ReadNext(ctx context.Context) (*image.RGBA, error)

	// Seek positions the cursor at index and returns the frame there, leaving
	// the cursor on index so the next ReadNext yields that same frame.
	Seek(index int) (*image.RGBA, error)

	// Position returns the cursor and the total frame count (0 when unknown).
	Position() (current, total int)

	FPS() float64
	Close() error
}

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
		".gif": true, ".tif": true, ".tiff": true, ".webp": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
		".webm": true, ".m4v": true, ".wmv": true, ".flv": true,
		".mpg": true, ".mpeg": true,
	}
)

// KindForPath classifies a media file by extension.
func KindForPath(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return KindImage, nil
	case videoExts[ext]:
		return KindVideo, nil
	default:
		return KindNone, ErrUnsupportedFormat
	}
}

// IsMediaFile reports whether path has an image or video extension.
func IsMediaFile(path string) bool {
	_, err := KindForPath(path)
	return err == nil
}

func normalizeFPS(fps float64) float64 {
	if !(fps > 0) || fps > 1000 {
		return DefaultFPS
	}
	return fps
}
