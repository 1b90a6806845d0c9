package preview

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/overlay"
	"github.com/bryanchriswhite/FlexiView/internal/params"
)

const DefaultFPS = 30

// Options wires a Stream to the shared state.
type Options struct {
	Slot    *frame.Slot
	Display *params.Display
	Guide   *params.Guide
	// Monitor reports the monitor the preview mirrors.
	Monitor func() monitor.Descriptor
	// Status feeds the status overlay line; may be nil.
	Status func() string
	Output output.Output
	Overlay *overlay.Manager

	Width     int
	Height    int
	FPS       int
	Processed bool
}

// Stream renders the preview at a fixed rate into an output.
type Stream struct {
	opts Options
	log  zerolog.Logger

	sizeMu sync.RWMutex
	size   image.Point

	processed atomic.Bool
	frames    atomic.Uint64

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewStream(opts Options) *Stream {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.Overlay == nil {
		opts.Overlay = overlay.NewManager()
	}
	if opts.Monitor == nil {
		opts.Monitor = func() monitor.Descriptor { return monitor.Fallback }
	}
	s := &Stream{
		opts: opts,
		log:  *logger.WithComponent("preview"),
		size: image.Pt(opts.Width, opts.Height),
	}
	s.processed.Store(opts.Processed)
	return s
}

func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("preview already running")
	}
	if s.opts.Output != nil && !s.opts.Output.IsRunning() {
		if err := s.opts.Output.Start(); err != nil {
			return fmt.Errorf("start preview output: %w", err)
		}
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stopChan, s.done)
	return nil
}

func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	<-done
}

func (s *Stream) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Stream) SetProcessed(v bool) { s.processed.Store(v) }
func (s *Stream) Processed() bool     { return s.processed.Load() }

// SetSize changes the preview dimensions; non-positive values are ignored.
func (s *Stream) SetSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	s.sizeMu.Lock()
	s.size = image.Pt(w, h)
	s.sizeMu.Unlock()
}

func (s *Stream) Size() image.Point {
	s.sizeMu.RLock()
	defer s.sizeMu.RUnlock()
	return s.size
}

func (s *Stream) Frames() uint64 { return s.frames.Load() }

// RenderFrame produces one preview frame from the current shared state.
func (s *Stream) RenderFrame() *image.RGBA {
	src, _ := s.opts.Slot.Latest()
	mon := s.opts.Monitor()
	guide := params.DefaultGuide()
	if s.opts.Guide != nil {
		guide = s.opts.Guide.Get()
	}
	p := params.Defaults()
	if s.opts.Display != nil {
		p = s.opts.Display.Snapshot()
	}
	size := s.Size()

	img := Render(src, p, guide, mon.Size(), size, s.Processed())

	scene := overlay.Scene{Scale: Scale(mon.Size(), size)}
	if s.opts.Status != nil {
		scene.Status = s.opts.Status()
	}
	s.opts.Overlay.Render(img, scene)
	return img
}

func (s *Stream) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.log.Info().Uint64("frames", s.frames.Load()).Msg("Preview stream stopped")
	}()

	interval := time.Second / time.Duration(s.opts.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().
		Int("fps", s.opts.FPS).
		Bool("processed", s.Processed()).
		Msg("Preview stream started")

	var lastErr string
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			img := s.RenderFrame()
			s.frames.Add(1)
			if s.opts.Output == nil {
				continue
			}
			if err := s.opts.Output.WriteFrame(img); err != nil {
				if err.Error() != lastErr {
					s.log.Warn().Err(err).Msg("Preview output error")
					lastErr = err.Error()
				}
				continue
			}
			lastErr = ""
		}
	}
}
