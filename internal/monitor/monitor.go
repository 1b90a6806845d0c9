// Package monitor enumerates physical displays and resolves a requested index
// to a concrete geometry.
package monitor

import (
	"errors"
	"fmt"
	"image"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

// ErrNoMonitors is returned by registries that found nothing to report.
var ErrNoMonitors = errors.New("no monitors found")

// Descriptor is the geometry of one physical display in desktop coordinates.
type Descriptor struct {
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Primary bool   `json:"primary" yaml:"primary"`
}

// Fallback is used when enumeration fails or reports no monitors.
var Fallback = Descriptor{Name: "default", Width: 1920, Height: 1080, Primary: true}

// Size returns the monitor size as a point.
func (d Descriptor) Size() image.Point {
	return image.Pt(d.Width, d.Height)
}

// Bounds returns the monitor rectangle in desktop coordinates.
func (d Descriptor) Bounds() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("#%d %s %dx%d+%d+%d", d.Index, d.Name, d.Width, d.Height, d.X, d.Y)
}

// Registry lists the currently attached monitors. Implementations enumerate
// fresh on every call so hot-plugged displays show up.
type Registry interface {
	List() ([]Descriptor, error)
}

// Resolve returns the monitor at index. Out-of-range indices select monitor 0;
// enumeration failures select Fallback. It never fails.
func Resolve(r Registry, index int) Descriptor {
	log := logger.WithComponent("monitor")

	if r == nil {
		return Fallback
	}
	monitors, err := r.List()
	if err != nil || len(monitors) == 0 {
		log.Warn().Err(err).Msg("Monitor enumeration failed, using fallback geometry")
		return Fallback
	}
	if index < 0 || index >= len(monitors) {
		log.Warn().
			Int("requested", index).
			Int("available", len(monitors)).
			Msg("Monitor index out of range, using monitor 0")
		return monitors[0]
	}
	return monitors[index]
}

// Chain tries each registry in order and returns the first non-empty result.
type Chain []Registry

func (c Chain) List() ([]Descriptor, error) {
	log := logger.WithComponent("monitor")
	var lastErr error = ErrNoMonitors

	for _, r := range c {
		monitors, err := r.List()
		if err != nil {
			log.Debug().Err(err).Msgf("Registry %T unavailable", r)
			lastErr = err
			continue
		}
		if len(monitors) > 0 {
			return monitors, nil
		}
	}
	return nil, lastErr
}

// Static is a fixed monitor list, used for headless operation and tests.
type Static []Descriptor

func (s Static) List() ([]Descriptor, error) {
	if len(s) == 0 {
		return nil, ErrNoMonitors
	}
	out := make([]Descriptor, len(s))
	for i, d := range s {
		d.Index = i
		if d.Name == "" {
			d.Name = fmt.Sprintf("static-%d", i)
		}
		out[i] = d
	}
	return out, nil
}
