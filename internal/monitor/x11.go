package monitor

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// X11Registry enumerates active CRTCs through the RandR extension.
type X11Registry struct {
	// Display is the X display name; empty uses $DISPLAY.
	Display string
}

func (r X11Registry) List() ([]Descriptor, error) {
	conn, err := xgb.NewConnDisplay(r.Display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer conn.Close()

	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("randr extension unavailable: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	res, err := randr.GetScreenResourcesCurrent(conn, root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Descriptor
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, res.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		d := Descriptor{
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		}
		for _, out := range info.Outputs {
			if out == primary {
				d.Primary = true
			}
		}
		if oi, err := randr.GetOutputInfo(conn, info.Outputs[0], res.ConfigTimestamp).Reply(); err == nil {
			d.Name = string(oi.Name)
		}
		monitors = append(monitors, d)
	}

	if len(monitors) == 0 {
		return nil, ErrNoMonitors
	}
	sortMonitors(monitors)
	return monitors, nil
}

// sortMonitors puts the primary first, then orders left to right, top to bottom,
// and assigns indices.
func sortMonitors(monitors []Descriptor) {
	sort.SliceStable(monitors, func(i, j int) bool {
		a, b := monitors[i], monitors[j]
		if a.Primary != b.Primary {
			return a.Primary
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	for i := range monitors {
		monitors[i].Index = i
	}
}
