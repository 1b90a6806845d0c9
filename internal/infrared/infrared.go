// Package infrared implements the IR camera frame source: device enumeration
// and selection, illumination filtering, color mapping, and a bounded queue
// between the device callback and the consumer.
package infrared

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

var (
	// ErrDeviceContention is returned when exclusive access to a device is refused.
	ErrDeviceContention = errors.New("device is in use by another process")

	// ErrNoDevices means enumeration found no infrared-capable device.
	ErrNoDevices = errors.New("no infrared devices found")

	// ErrUnsupported is returned by providers on platforms without IR capture.
	ErrUnsupported = errors.New("infrared capture not supported on this platform")
)

// FrameFilter selects frames by their illumination flag.
type FrameFilter int

const (
	FilterAll FrameFilter = iota
	FilterRawOnly
	FilterIlluminatedOnly
)

var filterNames = []string{"all", "raw", "illuminated"}

func (f FrameFilter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return filterNames[0]
	}
	return filterNames[f]
}

func (f FrameFilter) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FrameFilter) UnmarshalText(b []byte) (err error) {
	*f, err = ParseFilter(string(b))
	return err
}

// Next cycles All -> RawOnly -> IlluminatedOnly -> All.
func (f FrameFilter) Next() FrameFilter {
	return FrameFilter((int(f) + 1) % len(filterNames))
}

// Accepts reports whether a frame with the given illumination flag passes.
func (f FrameFilter) Accepts(illuminated bool) bool {
	switch f {
	case FilterRawOnly:
		return !illuminated
	case FilterIlluminatedOnly:
		return illuminated
	default:
		return true
	}
}

// ParseFilter accepts the names produced by String plus "none" for All.
func ParseFilter(s string) (FrameFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "none", "":
		return FilterAll, nil
	case "raw", "raw_only":
		return FilterRawOnly, nil
	case "illuminated", "illuminated_only":
		return FilterIlluminatedOnly, nil
	}
	return FilterAll, fmt.Errorf("unknown frame filter %q", s)
}

// ColorMapping turns IR intensity into display colors.
type ColorMapping int

const (
	MappingNone ColorMapping = iota
	MappingGreen
	MappingHeat
	MappingJet
)

var mappingNames = []string{"none", "green", "heat", "jet"}

func (m ColorMapping) String() string {
	if m < 0 || int(m) >= len(mappingNames) {
		return mappingNames[0]
	}
	return mappingNames[m]
}

func (m ColorMapping) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ColorMapping) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMapping(string(b))
	return err
}

// Next cycles None -> Green -> Heat -> Jet -> None.
func (m ColorMapping) Next() ColorMapping {
	return ColorMapping((int(m) + 1) % len(mappingNames))
}

func ParseMapping(s string) (ColorMapping, error) {
	for i, name := range mappingNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return ColorMapping(i), nil
		}
	}
	if strings.TrimSpace(s) == "" {
		return MappingNone, nil
	}
	return MappingNone, fmt.Errorf("unknown color mapping %q", s)
}

// Access is the sharing mode requested when opening a device.
type Access int

const (
	AccessExclusive Access = iota
	AccessShared
)

func (a Access) String() string {
	if a == AccessExclusive {
		return "exclusive"
	}
	return "shared"
}

// DeviceInfo describes an enumerated infrared device.
type DeviceInfo struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
}

// RawFrame is delivered by a device on its own goroutine.
type RawFrame struct {
	Image       image.Image
	Illuminated bool
}

// Device is an opened infrared camera.
type Device interface {
	// Start begins delivery; handler is invoked on the device goroutine.
	Start(handler func(RawFrame)) error
	Stop() error
	Info() DeviceInfo
}

// Provider enumerates and opens infrared devices.
type Provider interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, info DeviceInfo, access Access) (Device, error)
}

// Select runs the enumerate -> select half of the protocol. An out-of-range
// index selects the first device. When exclusive access is requested and
// refused, the device is opened once more in shared mode.
func Select(ctx context.Context, p Provider, index int, exclusive bool) (Device, error) {
	log := logger.WithComponent("infrared")

	devices, err := p.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate infrared devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if index < 0 || index >= len(devices) {
		log.Warn().Int("requested", index).Int("available", len(devices)).Msg("IR device index out of range, using device 0")
		index = 0
	}
	info := devices[index]

	access := AccessShared
	if exclusive {
		access = AccessExclusive
	}
	dev, err := p.Open(ctx, info, access)
	if err != nil && access == AccessExclusive && errors.Is(err, ErrDeviceContention) {
		log.Info().Str("device", info.Name).Msg("Exclusive access refused, retrying shared")
		dev, err = p.Open(ctx, info, AccessShared)
	}
	if err != nil {
		return nil, fmt.Errorf("open infrared device %s: %w", info.Name, err)
	}

	log.Info().
		Str("device", info.Name).
		Str("id", info.ID).
		Msg("Infrared device selected")
	return dev, nil
}
