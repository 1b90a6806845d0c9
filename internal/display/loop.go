// Package display drives the presentation surface: on every tick it reads
// the shared frame, composes it for the selected monitor and hands it to the
// surface.
package display

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/transform"
)

const (
	DefaultFPS = 60

	// surfaceRetry is how long to wait before recreating a failed surface.
	surfaceRetry = time.Second
	// refreshEvery forces a redraw of unchanged content.
	refreshEvery = time.Second
)

// SurfaceFactory creates the output for a monitor. The loop starts and
// stops the returned surface.
type SurfaceFactory func(mon monitor.Descriptor) (output.Output, error)

// HeadlessSurfaces creates Discard surfaces.
func HeadlessSurfaces(monitor.Descriptor) (output.Output, error) {
	return output.NewDiscard(), nil
}

// X11Surfaces creates override-redirect windows on the given X display.
func X11Surfaces(display string) SurfaceFactory {
	return func(mon monitor.Descriptor) (output.Output, error) {
		return output.NewX11Window(display, mon), nil
	}
}

// Status of the presentation loop.
type Status struct {
	Running   bool               `json:"running"`
	Monitor   monitor.Descriptor `json:"monitor"`
	Surface   string             `json:"surface,omitempty"`
	FPS       int                `json:"fps"`
	Frames    uint64             `json:"frames"`
	LastError string             `json:"last_error,omitempty"`
}

// Loop is the presentation loop. It owns the surface; Stop is the only path
// that releases it.
type Loop struct {
	slot     *frame.Slot
	params   *params.Display
	registry monitor.Registry
	factory  SurfaceFactory
	fps      int
	log      zerolog.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	mon      monitor.Descriptor
	surface  output.Output
	lastErr  string

	// resolved caches the selected monitor while no surface is open.
	resolved    monitor.Descriptor
	hasResolved bool

	monitorChanged atomic.Bool
	frames         atomic.Uint64
}

func New(slot *frame.Slot, p *params.Display, registry monitor.Registry, factory SurfaceFactory, fps int) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if factory == nil {
		factory = HeadlessSurfaces
	}
	return &Loop{
		slot:     slot,
		params:   p,
		registry: registry,
		factory:  factory,
		fps:      fps,
		log:      *logger.WithComponent("display"),
	}
}

// Start launches the loop goroutine. It runs until Stop or ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("display already running")
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})
	l.monitorChanged.Store(true)

	go l.run(ctx, l.stopChan, l.done)
	return nil
}

// Stop ends the loop and waits for the surface to be released.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	stop, done := l.stopChan, l.done
	l.stopChan = nil
	l.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	<-done
}

func (l *Loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

// SelectMonitor changes the target monitor; the loop rebuilds the surface on
// its next tick.
func (l *Loop) SelectMonitor(index int) {
	l.params.SetMonitorIndex(index)
	l.monitorChanged.Store(true)
	l.Refresh()
}

// Refresh re-enumerates monitors and caches the selected one.
func (l *Loop) Refresh() monitor.Descriptor {
	mon := monitor.Resolve(l.registry, l.params.Snapshot().MonitorIndex)
	l.mu.Lock()
	l.resolved, l.hasResolved = mon, true
	l.mu.Unlock()
	return mon
}

// Monitor returns the monitor currently presented on, or the cached
// selection if the loop is not running. It enumerates only on first use.
func (l *Loop) Monitor() monitor.Descriptor {
	l.mu.RLock()
	running, mon := l.running, l.mon
	resolved, ok := l.resolved, l.hasResolved
	l.mu.RUnlock()
	if running && mon.Width > 0 {
		return mon
	}
	if ok {
		return resolved
	}
	return l.Refresh()
}

func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := Status{
		Running:   l.running,
		Monitor:   l.mon,
		FPS:       l.fps,
		Frames:    l.frames.Load(),
		LastError: l.lastErr,
	}
	if l.surface != nil {
		st.Surface = l.surface.Name()
	}
	return st
}

func (l *Loop) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	interval := time.Second / time.Duration(l.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info().
		Int("fps", l.fps).
		Dur("interval", interval).
		Msg("Presentation loop started")

	r := renderer{}
	defer func() {
		l.closeSurface()
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.log.Info().Msg("Presentation loop stopped")
	}()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.tick(now, &r)
		}
	}
}

// renderer remembers what was last written to skip identical redraws.
type renderer struct {
	seq       uint64
	params    params.DisplayParameters
	drawnAt   time.Time
	retryAt   time.Time
	hasDrawn  bool
	lastError string
}

func (l *Loop) tick(now time.Time, r *renderer) {
	if l.monitorChanged.Swap(false) {
		l.closeSurface()
		r.hasDrawn = false
		r.retryAt = time.Time{}
	}

	l.mu.RLock()
	surface, mon := l.surface, l.mon
	l.mu.RUnlock()

	if surface == nil {
		if now.Before(r.retryAt) {
			return
		}
		var err error
		surface, mon, err = l.openSurface()
		if err != nil {
			r.retryAt = now.Add(surfaceRetry)
			l.recordError(r, err)
			return
		}
		r.hasDrawn = false
	}

	img, seq, _ := l.slot.LatestSeq()
	p := l.params.Snapshot()
	if r.hasDrawn && seq == r.seq && p == r.params && now.Sub(r.drawnAt) < refreshEvery {
		return
	}

	composed := transform.Compose(img, p, mon.Size())
	if err := surface.WriteFrame(composed); err != nil {
		l.recordError(r, err)
		return
	}
	l.frames.Add(1)
	r.seq, r.params, r.drawnAt, r.hasDrawn = seq, p, now, true
	if r.lastError != "" {
		r.lastError = ""
		l.mu.Lock()
		l.lastErr = ""
		l.mu.Unlock()
	}
}

func (l *Loop) openSurface() (output.Output, monitor.Descriptor, error) {
	mon := monitor.Resolve(l.registry, l.params.Snapshot().MonitorIndex)

	surface, err := l.factory(mon)
	if err != nil {
		return nil, mon, fmt.Errorf("create surface on %s: %w", mon, err)
	}
	if err := surface.Start(); err != nil {
		return nil, mon, fmt.Errorf("start surface on %s: %w", mon, err)
	}

	l.mu.Lock()
	l.surface = surface
	l.mon = mon
	l.resolved, l.hasResolved = mon, true
	l.mu.Unlock()

	l.log.Info().
		Str("monitor", mon.String()).
		Str("surface", surface.Name()).
		Msg("Presenting on monitor")
	return surface, mon, nil
}

func (l *Loop) closeSurface() {
	l.mu.Lock()
	surface := l.surface
	l.surface = nil
	l.mu.Unlock()

	if surface == nil {
		return
	}
	if err := surface.Stop(); err != nil {
		l.log.Warn().Err(err).Str("surface", surface.Name()).Msg("Error stopping surface")
	}
}

// recordError stores err in status and logs it once per distinct message.
func (l *Loop) recordError(r *renderer, err error) {
	msg := err.Error()
	l.mu.Lock()
	l.lastErr = msg
	l.mu.Unlock()
	if msg != r.lastError {
		r.lastError = msg
		l.log.Error().Err(err).Msg("Presentation surface error")
	}
}
