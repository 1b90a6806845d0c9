// Package player owns the playback session: which source is loaded, the
// producer goroutine that paces frames into the shared slot, and the
// Empty/Loaded/Playing/Paused/Stopped state machine.
package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

const (
	// JoinTimeout bounds how long teardown waits for a producer to exit.
	JoinTimeout = 2 * time.Second

	pausePoll = 50 * time.Millisecond
)

var ErrNoSource = errors.New("no source loaded")

// State of the playback session.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateStopped
)

var stateNames = [...]string{"empty", "loaded", "playing", "paused", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", b)
}

// Status is a point-in-time view of the session.
type Status struct {
	SourceKind   source.Kind `json:"source_kind"`
	State        State       `json:"state"`
	Playing      bool        `json:"playing"`
	Paused       bool        `json:"paused"`
	Loop         bool        `json:"loop"`
	CurrentFrame int         `json:"current_frame"`
	TotalFrames  int         `json:"total_frames"`
	FPS          float64     `json:"fps"`
	SourceName   string      `json:"source_name,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
}

// InfraredOptions selects an IR device.
type InfraredOptions struct {
	Index     int
	Exclusive bool
	Filter    infrared.FrameFilter
	Mapping   infrared.ColorMapping
}

// Openers construct sources. Nil entries report source.ErrOpen.
type Openers struct {
	Image    func(path string) (source.Source, error)
	Video    func(path string) (source.Source, error)
	Camera   func(id int) (source.Source, error)
	Infrared func(ctx context.Context, index int, exclusive bool) (*infrared.Source, error)
}

// DefaultOpeners decodes still images only; video, camera and infrared
// backends are injected by the caller.
func DefaultOpeners() Openers {
	return Openers{
		Image: func(path string) (source.Source, error) { return source.OpenImage(path) },
	}
}

type still interface {
	Frame() *image.RGBA
}

type rewinder interface {
	Rewind() error
}

// Session is the single playback session. Control operations are serialized
// by opMu; mu guards the fields shared with the producer goroutine.
type Session struct {
	slot    *frame.Slot
	openers Openers
	log     zerolog.Logger

	JoinTimeout time.Duration

	opMu sync.Mutex

	mu        sync.Mutex
	src       source.Source
	ir        *infrared.Source
	state     State
	loop      bool
	sessionID string
	lastErr   string
	cancel    context.CancelFunc
	done      chan struct{}

	paused atomic.Bool
}

func New(slot *frame.Slot, openers Openers) *Session {
	return &Session{
		slot:        slot,
		openers:     openers,
		log:         *logger.WithComponent("player"),
		JoinTimeout: JoinTimeout,
	}
}

func (s *Session) LoadImage(path string) error {
	return s.load(source.KindImage, path, false, func() (source.Source, error) {
		if s.openers.Image == nil {
			return nil, fmt.Errorf("%w: no image decoder", source.ErrOpen)
		}
		return s.openers.Image(path)
	})
}

func (s *Session) LoadVideo(path string, loop bool) error {
	return s.load(source.KindVideo, path, loop, func() (source.Source, error) {
		if s.openers.Video == nil {
			return nil, fmt.Errorf("%w: no video decoder", source.ErrOpen)
		}
		return s.openers.Video(path)
	})
}

func (s *Session) LoadCamera(id int) error {
	return s.load(source.KindCamera, fmt.Sprintf("camera %d", id), false, func() (source.Source, error) {
		if s.openers.Camera == nil {
			return nil, fmt.Errorf("%w: no camera backend", source.ErrOpen)
		}
		return s.openers.Camera(id)
	})
}

func (s *Session) LoadInfrared(ctx context.Context, opts InfraredOptions) error {
	return s.load(source.KindInfrared, fmt.Sprintf("infrared %d", opts.Index), false, func() (source.Source, error) {
		if s.openers.Infrared == nil {
			return nil, fmt.Errorf("%w: %v", source.ErrOpen, infrared.ErrUnsupported)
		}
		ir, err := s.openers.Infrared(ctx, opts.Index, opts.Exclusive)
		if err != nil {
			return nil, err
		}
		ir.SetFilter(opts.Filter)
		ir.SetMapping(opts.Mapping)
		return ir, nil
	})
}

// load tears down the current source before opening the next one, so a
// failed load leaves the session Empty.
func (s *Session) load(kind source.Kind, what string, loop bool, open func() (source.Source, error)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.teardown()

	src, err := open()
	if err != nil {
		s.recordError(err)
		s.log.Error().Err(err).Stringer("kind", kind).Str("source", what).Msg("Failed to load source")
		return err
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.src = src
	s.ir, _ = src.(*infrared.Source)
	s.state = StateLoaded
	s.loop = loop
	s.sessionID = id
	s.lastErr = ""
	s.mu.Unlock()

	s.publishPreview(src)

	_, total := src.Position()
	s.log.Info().
		Str("session", id).
		Stringer("kind", src.Kind()).
		Str("name", src.Name()).
		Int("frames", total).
		Float64("fps", src.FPS()).
		Msg("Source loaded")
	return nil
}

// publishPreview shows still images and the first video frame right away.
func (s *Session) publishPreview(src source.Source) {
	switch src.Kind() {
	case source.KindImage:
		if st, ok := src.(still); ok {
			s.slot.Publish(st.Frame())
		}
	case source.KindVideo:
		img, err := src.ReadNext(context.Background())
		if err != nil {
			s.log.Warn().Err(err).Msg("No first frame for preview")
			return
		}
		s.slot.Publish(img)
		if r, ok := src.(rewinder); ok {
			if err := r.Rewind(); err != nil {
				s.log.Warn().Err(err).Msg("Rewind after preview failed")
			}
		}
	}
}

func (s *Session) Play() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	src, state := s.src, s.state
	s.mu.Unlock()

	if src == nil {
		return ErrNoSource
	}
	switch state {
	case StatePlaying:
		return nil
	case StatePaused:
		s.resume()
		return nil
	}

	if src.Kind() == source.KindImage {
		return nil
	}

	if src.Kind() == source.KindVideo {
		if cur, total := src.Position(); total > 0 && cur >= total {
			if r, ok := src.(rewinder); ok {
				_ = r.Rewind()
			}
		}
	}

	s.setState(StatePlaying)
	s.startProducer(src)
	s.log.Info().Str("name", src.Name()).Msg("Playback started")
	return nil
}

func (s *Session) Pause() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.pause()
}

func (s *Session) Resume() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.resume()
}

func (s *Session) TogglePause() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	switch s.State() {
	case StatePlaying:
		s.pause()
	case StatePaused:
		s.resume()
	}
}

func (s *Session) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlaying {
		return
	}
	s.paused.Store(true)
	s.state = StatePaused
	s.log.Debug().Msg("Paused")
}

func (s *Session) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return
	}
	s.paused.Store(false)
	s.state = StatePlaying
	s.log.Debug().Msg("Resumed")
}

// Stop halts playback and keeps the source loaded so Play can restart it.
// Videos rewind to frame 0 and show it.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return
	}

	s.haltProducer()

	if src.Kind() == source.KindVideo {
		if img, err := src.Seek(0); err == nil {
			s.slot.Publish(img)
		}
	}
	s.setState(StateStopped)
	s.log.Info().Str("name", src.Name()).Msg("Playback stopped")
}

// Seek publishes frame n of a video. It is allowed in every state that has
// a video loaded, including while playing.
func (s *Session) Seek(n int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return ErrNoSource
	}

	img, err := src.Seek(n)
	if err != nil {
		return err
	}
	s.slot.Publish(img)
	return nil
}

func (s *Session) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

// Clear releases the source and empties the slot.
func (s *Session) Clear() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.teardown()
	s.slot.Clear()
}

func (s *Session) Close() error {
	s.Clear()
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Infrared returns the active infrared source, if any.
func (s *Session) Infrared() (*infrared.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ir, s.ir != nil
}

func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		State:     s.state,
		Playing:   s.state == StatePlaying,
		Paused:    s.state == StatePaused,
		Loop:      s.loop,
		SessionID: s.sessionID,
		LastError: s.lastErr,
	}
	src := s.src
	s.mu.Unlock()

	if src != nil {
		st.SourceKind = src.Kind()
		st.SourceName = src.Name()
		st.FPS = src.FPS()
		st.CurrentFrame, st.TotalFrames = src.Position()
	}
	return st
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.paused.Store(state == StatePaused)
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// teardown stops the producer and closes the source. Caller holds opMu.
func (s *Session) teardown() {
	s.haltProducer()

	s.mu.Lock()
	src := s.src
	s.src = nil
	s.ir = nil
	s.state = StateEmpty
	s.sessionID = ""
	s.paused.Store(false)
	s.mu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			s.log.Warn().Err(err).Str("name", src.Name()).Msg("Error closing source")
		}
	}
}

func (s *Session) startProducer(src source.Source) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	s.paused.Store(false)

	go s.produce(ctx, src, done)
}

// haltProducer cancels the producer and waits up to JoinTimeout for it.
// Caller holds opMu but not mu.
func (s *Session) haltProducer() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(s.JoinTimeout):
		s.log.Warn().Dur("timeout", s.JoinTimeout).Msg("Producer did not exit, abandoning it")
	}
}

func (s *Session) produce(ctx context.Context, src source.Source, done chan struct{}) {
	defer close(done)

	fps := src.FPS()
	if fps <= 0 {
		fps = source.DefaultFPS
	}
	interval := time.Duration(float64(time.Second) / fps)
	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()
	log := logger.WithSession("player", id).With().Str("name", src.Name()).Logger()
	log.Debug().Dur("interval", interval).Msg("Producer started")

	for {
		if ctx.Err() != nil {
			return
		}
		if s.paused.Load() {
			if !sleep(ctx, pausePoll) {
				return
			}
			continue
		}

		start := time.Now()
		img, err := src.ReadNext(ctx)
		switch {
		case err == nil:
			s.slot.Publish(img)
		case errors.Is(err, source.ErrEndOfStream):
			if s.looping() {
				if _, err := src.Seek(0); err != nil {
					log.Warn().Err(err).Msg("Rewind failed")
					s.finish(done)
					return
				}
				continue
			}
			log.Info().Msg("End of stream")
			s.finish(done)
			return
		case errors.Is(err, source.ErrNoFrame):
			// Live sources retry until a frame arrives.
		case ctx.Err() != nil:
			return
		default:
			log.Error().Err(err).Msg("Read failed")
			s.recordError(err)
		}

		if wait := interval - time.Since(start); wait > 0 {
			if !sleep(ctx, wait) {
				return
			}
		}
	}
}

func (s *Session) looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// finish marks natural end of playback unless the producer was already
// replaced or cancelled.
func (s *Session) finish(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != done {
		return
	}
	s.cancel()
	s.cancel, s.done = nil, nil
	s.state = StateStopped
	s.paused.Store(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
