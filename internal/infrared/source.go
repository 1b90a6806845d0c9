package infrared

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

// State is the IR session state exposed to control surfaces.
type State struct {
	Filter      FrameFilter  `json:"frame_filter"`
	Mapping     ColorMapping `json:"color_mapping"`
	Illuminated bool         `json:"is_illuminated"`
	Device      DeviceInfo   `json:"device"`
	Dropped     uint64       `json:"dropped_frames"`
}

// Source adapts a started Device to source.Source. Frames are filtered and
// colorized on the device goroutine, then handed over through a Queue.
type Source struct {
	dev   Device
	queue *Queue
	log   zerolog.Logger

	filter      atomic.Int32
	mapping     atomic.Int32
	illuminated atomic.Bool

	mu   sync.Mutex
	last *image.RGBA

	closeOnce sync.Once
	closeErr  error
}

var _ source.Source = (*Source)(nil)

// Open completes the protocol: select a device and start delivery.
func Open(ctx context.Context, p Provider, index int, exclusive bool) (*Source, error) {
	dev, err := Select(ctx, p, index, exclusive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrOpen, err)
	}
	s, err := Start(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrOpen, err)
	}
	return s, nil
}

// Start begins frame delivery from dev.
func Start(dev Device) (*Source, error) {
	s := &Source{
		dev:   dev,
		queue: NewQueue(QueueCapacity),
		log:   *logger.WithComponent("infrared"),
	}
	if err := dev.Start(s.onFrame); err != nil {
		_ = dev.Stop()
		return nil, fmt.Errorf("start infrared device: %w", err)
	}
	return s, nil
}

func (s *Source) onFrame(f RawFrame) {
	if f.Image == nil {
		return
	}
	s.illuminated.Store(f.Illuminated)
	if !s.Filter().Accepts(f.Illuminated) {
		return
	}
	s.queue.Push(Colorize(f.Image, s.Mapping()))
}

func (s *Source) Kind() source.Kind { return source.KindInfrared }
func (s *Source) Name() string      { return s.dev.Info().Name }
func (s *Source) FPS() float64      { return source.DefaultFPS }

// ReadNext returns the next queued frame. With nothing queued it repeats the
// last frame, and returns source.ErrNoFrame until the first frame arrives.
func (s *Source) ReadNext(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.queue.Pop(); ok {
		s.last = img
		return img, nil
	}
	if s.last == nil {
		return nil, source.ErrNoFrame
	}
	return s.last, nil
}

func (s *Source) Seek(int) (*image.RGBA, error) { return nil, source.ErrSeekUnsupported }

func (s *Source) Position() (int, int) { return 0, 0 }

func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.dev.Stop()
		s.queue.Clear()
		s.log.Info().Str("device", s.dev.Info().Name).Msg("Infrared device stopped")
	})
	return s.closeErr
}

func (s *Source) Filter() FrameFilter { return FrameFilter(s.filter.Load()) }

func (s *Source) SetFilter(f FrameFilter) {
	s.filter.Store(int32(f))
	s.queue.Clear()
	s.log.Debug().Stringer("filter", f).Msg("Frame filter changed")
}

func (s *Source) Mapping() ColorMapping { return ColorMapping(s.mapping.Load()) }

func (s *Source) SetMapping(m ColorMapping) {
	s.mapping.Store(int32(m))
	s.log.Debug().Stringer("mapping", m).Msg("Color mapping changed")
}

// CycleFilter advances the filter and returns the new value.
func (s *Source) CycleFilter() FrameFilter {
	next := s.Filter().Next()
	s.SetFilter(next)
	return next
}

// CycleMapping advances the mapping and returns the new value.
func (s *Source) CycleMapping() ColorMapping {
	next := s.Mapping().Next()
	s.SetMapping(next)
	return next
}

func (s *Source) State() State {
	return State{
		Filter:      s.Filter(),
		Mapping:     s.Mapping(),
		Illuminated: s.illuminated.Load(),
		Device:      s.dev.Info(),
		Dropped:     s.queue.Dropped(),
	}
}
