// Package apptest builds an App backed entirely by in-memory fakes.
package apptest

import (
	"context"
	"image/color"
	"testing"

	"github.com/bryanchriswhite/FlexiView/internal/app"
	"github.com/bryanchriswhite/FlexiView/internal/frame"
	"github.com/bryanchriswhite/FlexiView/internal/infrared/irtest"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/source"
	"github.com/bryanchriswhite/FlexiView/internal/source/sourcetest"
)

// Monitors is the registry used by New: a 1920x1080 primary and a 1280x720 side screen.
var Monitors = monitor.Static{
	{Name: "primary", Width: 1920, Height: 1080, Primary: true},
	{Name: "side", X: 1920, Width: 1280, Height: 720},
}

// Fixture exposes the fakes behind an App.
type Fixture struct {
	App      *app.App
	Infrared *irtest.Provider
	Preview  *output.Discard
	Capturer *sourcetest.Capturer
	// VideoFrames and VideoFPS shape every decoded video.
	VideoFrames int
	VideoFPS    float64
}

// New builds and starts an App with headless surfaces. It is closed when the
// test ends.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		Infrared:    irtest.NewProvider("ir0", "ir1"),
		Preview:     output.NewDiscard(),
		Capturer:    sourcetest.NewCapturer(sourcetest.Frames(3)),
		VideoFrames: 10,
		VideoFPS:    100,
	}
	f.App = app.New(app.Options{
		Registry:       Monitors,
		DisplayEnabled: true,
		DisplayFPS:     100,
		Openers: player.Openers{
			Image: func(path string) (source.Source, error) {
				return source.NewImage(path, frame.Filled(16, 9, color.RGBA{R: 200, A: 255})), nil
			},
			Video: func(path string) (source.Source, error) {
				d := sourcetest.NewDecoder(sourcetest.Frames(f.VideoFrames), f.VideoFPS)
				return source.NewVideo(d, path), nil
			},
			Camera: func(id int) (source.Source, error) {
				return source.NewCamera(f.Capturer, "camera"), nil
			},
		},
		Infrared:      f.Infrared,
		ProbeCameras:  func(limit int) []int { return []int{0, 2} },
		PreviewOutput: f.Preview,
		PreviewWidth:  160,
		PreviewHeight: 90,
		PreviewFPS:    100,
		ShowStatus:    true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.App.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start app: %v", err)
	}
	t.Cleanup(func() {
		f.App.Close()
		cancel()
	})
	return f
}
