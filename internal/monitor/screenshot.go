package monitor

import (
	"fmt"

	"github.com/kbinani/screenshot"
)

// ScreenshotRegistry reports active displays through the platform screenshot
// backend. It works where RandR is unavailable (XWayland-less setups, macOS, Windows).
type ScreenshotRegistry struct{}

func (ScreenshotRegistry) List() ([]Descriptor, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, ErrNoMonitors
	}

	monitors := make([]Descriptor, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		if b.Empty() {
			continue
		}
		monitors = append(monitors, Descriptor{
			Index:   len(monitors),
			Name:    fmt.Sprintf("display-%d", i),
			X:       b.Min.X,
			Y:       b.Min.Y,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Primary: i == 0,
		})
	}
	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}
	return monitors, nil
}

// Default returns the registry chain used by the CLI: RandR first, then the
// screenshot backend.
func Default(display string) Registry {
	return Chain{X11Registry{Display: display}, ScreenshotRegistry{}}
}
