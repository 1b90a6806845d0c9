package params

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync/atomic"
)

const (
	// MaxScale is the largest accepted scale factor. Larger values are clamped.
	MaxScale = 50.0

	// DefaultScale is the identity scale.
	DefaultScale = 1.0
)

var (
	ErrInvalidScale    = errors.New("scale must be a finite number greater than zero")
	ErrInvalidRotation = errors.New("rotation must be a finite number")
)

// DefaultBackground is opaque black.
var DefaultBackground = color.RGBA{A: 255}

// DisplayParameters is a point-in-time copy of the geometry applied to every frame.
type DisplayParameters struct {
	Scale            float64    `json:"scale" yaml:"scale"`
	Rotation         float64    `json:"rotation" yaml:"rotation"`
	OffsetX          int        `json:"offset_x" yaml:"offset_x"`
	OffsetY          int        `json:"offset_y" yaml:"offset_y"`
	MirrorHorizontal bool       `json:"mirror_h" yaml:"mirror_h"`
	MirrorVertical   bool       `json:"mirror_v" yaml:"mirror_v"`
	BackgroundColor  color.RGBA `json:"-" yaml:"-"`
	MonitorIndex     int        `json:"monitor_index" yaml:"monitor_index"`
}

// Defaults returns identity geometry on a black background, monitor 0.
func Defaults() DisplayParameters {
	return DisplayParameters{
		Scale:           DefaultScale,
		BackgroundColor: DefaultBackground,
	}
}

// Display is the single shared parameter record. Every field lives in its own
// atomic so the presentation and preview loops never take a lock; a reader may
// observe a mix of old and new fields while a writer is mid-update.
type Display struct {
	scale      atomic.Uint64 // math.Float64bits
	rotation   atomic.Uint64 // math.Float64bits
	offsetX    atomic.Int64
	offsetY    atomic.Int64
	mirrorH    atomic.Bool
	mirrorV    atomic.Bool
	background atomic.Uint32 // 0x00RRGGBB
	monitor    atomic.Int64
}

// NewDisplay creates a parameter record holding Defaults().
func NewDisplay() *Display {
	d := &Display{}
	d.Reset()
	return d
}

// Reset restores the default geometry. The monitor selection is kept.
func (d *Display) Reset() {
	def := Defaults()
	d.scale.Store(math.Float64bits(def.Scale))
	d.rotation.Store(0)
	d.offsetX.Store(0)
	d.offsetY.Store(0)
	d.mirrorH.Store(false)
	d.mirrorV.Store(false)
	d.background.Store(packRGB(def.BackgroundColor))
}

// Snapshot copies the current values.
func (d *Display) Snapshot() DisplayParameters {
	return DisplayParameters{
		Scale:            math.Float64frombits(d.scale.Load()),
		Rotation:         math.Float64frombits(d.rotation.Load()),
		OffsetX:          int(d.offsetX.Load()),
		OffsetY:          int(d.offsetY.Load()),
		MirrorHorizontal: d.mirrorH.Load(),
		MirrorVertical:   d.mirrorV.Load(),
		BackgroundColor:  unpackRGB(d.background.Load()),
		MonitorIndex:     int(d.monitor.Load()),
	}
}

// ValidateScale reports whether s is usable and returns it clamped to MaxScale.
func ValidateScale(s float64) (float64, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScale, s)
	}
	if s > MaxScale {
		s = MaxScale
	}
	return s, nil
}

// SetScale stores a new uniform scale factor.
func (d *Display) SetScale(s float64) error {
	v, err := ValidateScale(s)
	if err != nil {
		return err
	}
	d.scale.Store(math.Float64bits(v))
	return nil
}

// SetRotation stores a rotation in degrees, counter-clockwise as seen on screen.
func (d *Display) SetRotation(deg float64) error {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRotation, deg)
	}
	d.rotation.Store(math.Float64bits(deg))
	return nil
}

func (d *Display) SetOffset(x, y int) {
	d.offsetX.Store(int64(x))
	d.offsetY.Store(int64(y))
}

func (d *Display) SetMirror(horizontal, vertical bool) {
	d.mirrorH.Store(horizontal)
	d.mirrorV.Store(vertical)
}

func (d *Display) SetMirrorHorizontal(v bool) { d.mirrorH.Store(v) }

func (d *Display) SetMirrorVertical(v bool) { d.mirrorV.Store(v) }

// SetBackground stores the fill color. Alpha is ignored; frames are always opaque.
func (d *Display) SetBackground(c color.RGBA) {
	d.background.Store(packRGB(c))
}

// SetMonitorIndex stores the requested monitor. Negative indices select monitor 0.
func (d *Display) SetMonitorIndex(i int) {
	if i < 0 {
		i = 0
	}
	d.monitor.Store(int64(i))
}

// Apply stores every field of p. An invalid scale or rotation is reported and
// left unchanged while the remaining fields are still applied.
func (d *Display) Apply(p DisplayParameters) error {
	var errs []error
	if err := d.SetScale(p.Scale); err != nil {
		errs = append(errs, err)
	}
	if err := d.SetRotation(p.Rotation); err != nil {
		errs = append(errs, err)
	}
	d.SetOffset(p.OffsetX, p.OffsetY)
	d.SetMirror(p.MirrorHorizontal, p.MirrorVertical)
	d.SetBackground(p.BackgroundColor)
	d.SetMonitorIndex(p.MonitorIndex)
	return errors.Join(errs...)
}

// RGB returns the background as an [r, g, b] triple, the wire form used by presets and the API.
func (p DisplayParameters) RGB() [3]uint8 {
	return [3]uint8{p.BackgroundColor.R, p.BackgroundColor.G, p.BackgroundColor.B}
}

// FromRGB builds an opaque color from an [r, g, b] triple.
func FromRGB(rgb [3]uint8) color.RGBA {
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func packRGB(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func unpackRGB(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
