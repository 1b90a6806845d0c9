// Package app owns the application state and exposes the control contract
// used by the HTTP facade, the CLI and the status emitter.
package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/display"
	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/overlay"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/preset"
	"github.com/bryanchriswhite/FlexiView/internal/preview"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

// DefaultCameraProbe is how many camera indices are tried when listing cameras.
const DefaultCameraProbe = 11

var (
	ErrNoInfrared     = errors.New("no infrared source active")
	ErrInvalidPreview = errors.New("preview size must be positive")
)

// Options wires the application to its backends. Zero values select
// headless or unavailable behavior.
type Options struct {
	Registry monitor.Registry
	Surfaces display.SurfaceFactory
	// DisplayFPS is the presentation cadence; 0 selects display.DefaultFPS.
	DisplayFPS     int
	DisplayEnabled bool

	Openers  player.Openers
	Infrared infrared.Provider
	// ProbeCameras returns the usable camera indices below limit.
	ProbeCameras func(limit int) []int

	PreviewOutput    output.Output
	PreviewWidth     int
	PreviewHeight    int
	PreviewFPS       int
	PreviewProcessed bool
	ShowStatus       bool
}

// App is the explicitly owned application state.
type App struct {
	opts Options
	log  zerolog.Logger

	slot    *frame.Slot
	display *params.Display
	guide   *params.Guide
	session *player.Session
	loop    *display.Loop
	preview *preview.Stream
	overlay *overlay.Manager

	displayEnabled atomic.Bool

	mu  sync.Mutex
	ctx context.Context
}

func New(opts Options) *App {
	a := &App{
		opts:    opts,
		log:     *logger.WithComponent("app"),
		slot:    frame.NewSlot(),
		display: params.NewDisplay(),
		guide:   params.NewGuide(),
		overlay: overlay.NewManager(),
	}
	a.displayEnabled.Store(opts.DisplayEnabled)

	openers := opts.Openers
	if openers.Image == nil {
		openers.Image = player.DefaultOpeners().Image
	}
	if openers.Infrared == nil && opts.Infrared != nil {
		provider := opts.Infrared
		openers.Infrared = func(ctx context.Context, index int, exclusive bool) (*infrared.Source, error) {
			return infrared.Open(ctx, provider, index, exclusive)
		}
	}
	a.session = player.New(a.slot, openers)
	a.loop = display.New(a.slot, a.display, opts.Registry, opts.Surfaces, opts.DisplayFPS)

	var status func() string
	if opts.ShowStatus {
		if err := a.overlay.AddWidget(overlay.NewStatusWidget("status")); err != nil {
			a.log.Warn().Err(err).Msg("Failed to add status widget")
		}
		status = a.StatusLine
	}
	a.preview = preview.NewStream(preview.Options{
		Slot:      a.slot,
		Display:   a.display,
		Guide:     a.guide,
		Monitor:   a.loop.Monitor,
		Status:    status,
		Output:    opts.PreviewOutput,
		Overlay:   a.overlay,
		Width:     opts.PreviewWidth,
		Height:    opts.PreviewHeight,
		FPS:       opts.PreviewFPS,
		Processed: opts.PreviewProcessed,
	})
	return a
}

// Start launches the preview stream and, when enabled, the presentation loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	if err := a.preview.Start(ctx); err != nil {
		return fmt.Errorf("failed to start preview: %w", err)
	}
	if a.displayEnabled.Load() {
		if err := a.loop.Start(ctx); err != nil {
			a.preview.Stop()
			return fmt.Errorf("failed to start display: %w", err)
		}
	}
	a.log.Info().Bool("display", a.displayEnabled.Load()).Msg("Application started")
	return nil
}

// Close stops every loop and releases the active source.
func (a *App) Close() error {
	a.preview.Stop()
	a.loop.Stop()
	err := a.session.Close()
	a.log.Info().Msg("Application stopped")
	return err
}

func (a *App) Slot() *frame.Slot { return a.slot }
func (a *App) Session() *player.Session { return a.session }
func (a *App) Overlay() *overlay.Manager { return a.overlay }

// Display parameters.

func (a *App) Params() params.DisplayParameters { return a.display.Snapshot() }
func (a *App) SetScale(s float64) error { return a.display.SetScale(s) }
func (a *App) SetRotation(deg float64) error { return a.display.SetRotation(deg) }
func (a *App) SetOffset(x, y int) { a.display.SetOffset(x, y) }
func (a *App) SetMirror(horizontal, vertical bool) { a.display.SetMirror(horizontal, vertical) }
func (a *App) SetBackground(c color.RGBA) { a.display.SetBackground(c) }

// SelectMonitor retargets the presentation surface.
func (a *App) SelectMonitor(index int) {
	a.loop.SelectMonitor(index)
	a.log.Info().Int("monitor", index).Msg("Monitor selected")
}

// ResetTransform restores identity geometry and a black background while
// keeping the selected monitor.
func (a *App) ResetTransform() {
	mon := a.display.Snapshot().MonitorIndex
	a.display.Reset()
	a.display.SetMonitorIndex(mon)
}

func (a *App) Monitors() ([]monitor.Descriptor, error) {
	if a.opts.Registry == nil {
		return []monitor.Descriptor{monitor.Fallback}, nil
	}
	monitors, err := a.opts.Registry.List()
	if err == nil {
		a.loop.Refresh()
	}
	return monitors, err
}

func (a *App) Monitor() monitor.Descriptor { return a.loop.Monitor() }

// SetDisplayEnabled starts or stops the presentation loop. Before Start it
// only records the preference.
func (a *App) SetDisplayEnabled(enabled bool) error {
	a.displayEnabled.Store(enabled)

	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		return nil
	}

	if !enabled {
		a.loop.Stop()
		return nil
	}
	if a.loop.IsRunning() {
		return nil
	}
	return a.loop.Start(ctx)
}

func (a *App) DisplayEnabled() bool { return a.displayEnabled.Load() }

// Guide.

func (a *App) Guide() params.GuideRectangle { return a.guide.Get() }
func (a *App) SetGuide(g params.GuideRectangle) { a.guide.Set(g) }
func (a *App) UpdateGuide(fn func(*params.GuideRectangle)) params.GuideRectangle {
	return a.guide.Update(fn)
}

// Playback.

func (a *App) Play() error { return a.session.Play() }
func (a *App) Pause() { a.session.Pause() }
func (a *App) Resume() { a.session.Resume() }
func (a *App) TogglePause() { a.session.TogglePause() }
func (a *App) Stop() { a.session.Stop() }
func (a *App) Seek(n int) error { return a.session.Seek(n) }
func (a *App) SetLoop(loop bool) { a.session.SetLoop(loop) }
func (a *App) Clear() { a.session.Clear() }

func (a *App) LoadImage(path string) error {
	return a.session.LoadImage(path)
}

func (a *App) LoadVideo(path string, loop bool) error {
	return a.session.LoadVideo(path, loop)
}

// LoadFile loads an image or video by extension and starts playback.
func (a *App) LoadFile(path string, loop bool) error {
	kind, err := source.KindForPath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	switch kind {
	case source.KindImage:
		err = a.session.LoadImage(path)
	default:
		err = a.session.LoadVideo(path, loop)
	}
	if err != nil {
		return err
	}
	return a.session.Play()
}

// LoadCamera opens a live camera and starts playback.
func (a *App) LoadCamera(id int) error {
	if err := a.session.LoadCamera(id); err != nil {
		return err
	}
	return a.session.Play()
}

// LoadInfrared opens an infrared camera and starts playback.
func (a *App) LoadInfrared(ctx context.Context, opts player.InfraredOptions) error {
	if err := a.session.LoadInfrared(ctx, opts); err != nil {
		return err
	}
	return a.session.Play()
}

// Cameras probes camera indices below DefaultCameraProbe.
func (a *App) Cameras() []int {
	if a.opts.ProbeCameras == nil {
		return []int{}
	}
	found := a.opts.ProbeCameras(DefaultCameraProbe)
	if found == nil {
		found = []int{}
	}
	return found
}

// Infrared.

func (a *App) InfraredAvailable() bool {
	return a.opts.Infrared != nil
}

func (a *App) InfraredDevices(ctx context.Context) ([]infrared.DeviceInfo, error) {
	if a.opts.Infrared == nil {
		return nil, infrared.ErrUnsupported
	}
	return a.opts.Infrared.Devices(ctx)
}

func (a *App) SetInfraredFilter(f infrared.FrameFilter) error {
	ir, ok := a.session.Infrared()
	if !ok {
		return ErrNoInfrared
	}
	ir.SetFilter(f)
	return nil
}

func (a *App) SetInfraredMapping(m infrared.ColorMapping) error {
	ir, ok := a.session.Infrared()
	if !ok {
		return ErrNoInfrared
	}
	ir.SetMapping(m)
	return nil
}

// Preview.

func (a *App) SetPreviewProcessed(v bool) { a.preview.SetProcessed(v) }

func (a *App) SetPreviewSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidPreview, w, h)
	}
	a.preview.SetSize(w, h)
	return nil
}

func (a *App) Preview() *preview.Stream { return a.preview }

// Presets.

// ApplyPreset applies every field present in p. An invalid scale or rotation
// is reported while the remaining fields still take effect.
func (a *App) ApplyPreset(p preset.Preset) error {
	var errs []error
	if err := a.display.Apply(p.Display(a.display.Snapshot())); err != nil {
		errs = append(errs, err)
	}
	if p.MonitorIndex != nil {
		a.loop.SelectMonitor(*p.MonitorIndex)
	}
	if p.Guide != nil {
		a.guide.Set(p.GuideRect(a.guide.Get()))
	}
	if p.Enabled != nil {
		if err := a.SetDisplayEnabled(*p.Enabled); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.log.Warn().Err(err).Msg("Preset partially applied")
	} else {
		a.log.Info().Msg("Preset applied")
	}
	return err
}

// CurrentPreset captures the live parameters as a complete record.
func (a *App) CurrentPreset() preset.Preset {
	return preset.FromState(a.display.Snapshot(), a.guide.Get(), a.displayEnabled.Load())
}

// Status.

// DisplayStatus is the parameter record in its wire form.
type DisplayStatus struct {
	params.DisplayParameters
	BackgroundColor [3]uint8 `json:"background_color"`
	Enabled         bool     `json:"enabled"`
}

type InfraredStatus struct {
	Available bool            `json:"available"`
	Active    bool            `json:"active"`
	State     *infrared.State `json:"state,omitempty"`
}

type PreviewStatus struct {
	Processed bool   `json:"processed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Frames    uint64 `json:"frames"`
}

// Status is a point-in-time view of the whole application.
type Status struct {
	Session      player.Status         `json:"session"`
	Display      DisplayStatus         `json:"display"`
	Guide        params.GuideRectangle `json:"guide"`
	Infrared     InfraredStatus        `json:"infrared"`
	Monitor      monitor.Descriptor    `json:"monitor"`
	Presentation display.Status        `json:"presentation"`
	Preview      PreviewStatus         `json:"preview"`
}

func (a *App) Status() Status {
	p := a.display.Snapshot()
	size := a.preview.Size()
	st := Status{
		Session: a.session.Status(),
		Display: DisplayStatus{
			DisplayParameters: p,
			BackgroundColor:   p.RGB(),
			Enabled:           a.displayEnabled.Load(),
		},
		Guide:        a.guide.Get(),
		Infrared:     InfraredStatus{Available: a.InfraredAvailable()},
		Monitor:      a.loop.Monitor(),
		Presentation: a.loop.Status(),
		Preview: PreviewStatus{
			Processed: a.preview.Processed(),
			Width:     size.X,
			Height:    size.Y,
			Frames:    a.preview.Frames(),
		},
	}
	if ir, ok := a.session.Infrared(); ok {
		state := ir.State()
		st.Infrared.Active = true
		st.Infrared.State = &state
	}
	return st
}

// StatusLine is the one-line summary drawn by the status overlay.
func (a *App) StatusLine() string {
	s := a.session.Status()
	if s.SourceKind == source.KindNone {
		return "no source"
	}
	parts := []string{s.State.String(), s.SourceName}
	if s.TotalFrames > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", s.CurrentFrame, s.TotalFrames))
	}
	if s.Loop {
		parts = append(parts, "loop")
	}
	if ir, ok := a.session.Infrared(); ok {
		st := ir.State()
		parts = append(parts, st.Filter.String(), st.Mapping.String())
	}
	return strings.Join(parts, "  ")
}
