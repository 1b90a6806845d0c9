// Package preset reads and writes the persisted display parameter record.
//
// Documents are YAML or JSON. Decoding is tolerant per field: unknown keys are
// ignored and fields of the wrong type are skipped with a warning. Only a
// document that cannot be parsed at all is an error.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/FlexiView/internal/params"
)

// ErrConfig reports a document that is not a readable mapping.
var ErrConfig = errors.New("unreadable preset document")

// Guide is the persisted guide rectangle. Nil fields were absent.
type Guide struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	X       *int  `json:"x,omitempty" yaml:"x,omitempty"`
	Y       *int  `json:"y,omitempty" yaml:"y,omitempty"`
	Width   *int  `json:"width,omitempty" yaml:"width,omitempty"`
	Height  *int  `json:"height,omitempty" yaml:"height,omitempty"`
}

// Preset is the persisted parameter record. Nil fields were absent from the
// document and leave the live value untouched when applied.
type Preset struct {
	Scale           *float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Rotation        *float64  `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	OffsetX         *int      `json:"offset_x,omitempty" yaml:"offset_x,omitempty"`
	OffsetY         *int      `json:"offset_y,omitempty" yaml:"offset_y,omitempty"`
	MirrorH         *bool     `json:"mirror_h,omitempty" yaml:"mirror_h,omitempty"`
	MirrorV         *bool     `json:"mirror_v,omitempty" yaml:"mirror_v,omitempty"`
	BackgroundColor *[3]uint8 `json:"background_color,omitempty" yaml:"background_color,omitempty,flow"`
	MonitorIndex    *int      `json:"monitor_index,omitempty" yaml:"monitor_index,omitempty"`
	// Enabled turns the presentation surface on or off.
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Guide   *Guide `json:"guide,omitempty" yaml:"guide,omitempty"`
}

// FromState captures a complete record from live values.
func FromState(p params.DisplayParameters, g params.GuideRectangle, enabled bool) Preset {
	rgb := p.RGB()
	return Preset{
		Scale:           &p.Scale,
		Rotation:        &p.Rotation,
		OffsetX:         &p.OffsetX,
		OffsetY:         &p.OffsetY,
		MirrorH:         &p.MirrorHorizontal,
		MirrorV:         &p.MirrorVertical,
		BackgroundColor: &rgb,
		MonitorIndex:    &p.MonitorIndex,
		Enabled:         &enabled,
		Guide: &Guide{
			Enabled: &g.Enabled,
			X:       &g.X,
			Y:       &g.Y,
			Width:   &g.Width,
			Height:  &g.Height,
		},
	}
}

// Display overlays the present fields onto base.
func (p Preset) Display(base params.DisplayParameters) params.DisplayParameters {
	if p.Scale != nil {
		base.Scale = *p.Scale
	}
	if p.Rotation != nil {
		base.Rotation = *p.Rotation
	}
	if p.OffsetX != nil {
		base.OffsetX = *p.OffsetX
	}
	if p.OffsetY != nil {
		base.OffsetY = *p.OffsetY
	}
	if p.MirrorH != nil {
		base.MirrorHorizontal = *p.MirrorH
	}
	if p.MirrorV != nil {
		base.MirrorVertical = *p.MirrorV
	}
	if p.BackgroundColor != nil {
		base.BackgroundColor = params.FromRGB(*p.BackgroundColor)
	}
	if p.MonitorIndex != nil {
		base.MonitorIndex = *p.MonitorIndex
	}
	return base
}

// GuideRect overlays the present guide fields onto base.
func (p Preset) GuideRect(base params.GuideRectangle) params.GuideRectangle {
	if p.Guide == nil {
		return base
	}
	g := p.Guide
	if g.Enabled != nil {
		base.Enabled = *g.Enabled
	}
	if g.X != nil {
		base.X = *g.X
	}
	if g.Y != nil {
		base.Y = *g.Y
	}
	if g.Width != nil {
		base.Width = *g.Width
	}
	if g.Height != nil {
		base.Height = *g.Height
	}
	return base
}

// Format is a document encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFor picks the encoding from a file name; anything but .json is YAML.
func FormatFor(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Encode writes p in the given format.
func Encode(p Preset, f Format) ([]byte, error) {
	if f == FormatJSON {
		data, err := json.MarshalIndent(p, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal preset: %w", err)
		}
		return append(data, '\n'), nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preset: %w", err)
	}
	return data, nil
}

// Decode parses a YAML or JSON document. Warnings name every field that was
// present but skipped. The legacy layout with a nested "display" mapping is
// accepted too; top-level keys win over nested ones.
func Decode(data []byte) (Preset, []string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Preset{}, nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if doc == nil {
		if len(strings.TrimSpace(string(data))) > 0 {
			return Preset{}, nil, fmt.Errorf("%w: document is not a mapping", ErrConfig)
		}
		return Preset{}, nil, nil
	}

	d := decoder{}
	var p Preset
	if nested, ok := doc["display"].(map[string]any); ok {
		d.record(&p, nested, "display.")
	}
	d.record(&p, doc, "")

	if raw, ok := doc["guide"]; ok {
		if m, ok := raw.(map[string]any); ok {
			p.Guide = d.guide(m)
		} else {
			d.skip("guide", raw)
		}
	}
	return p, d.warnings, nil
}

type decoder struct {
	warnings []string
}

func (d *decoder) skip(key string, v any) {
	d.warnings = append(d.warnings, fmt.Sprintf("%s: ignoring value %v of type %T", key, v, v))
}

func (d *decoder) record(p *Preset, m map[string]any, prefix string) {
	for _, key := range sortedKeys(m) {
		v := m[key]
		var ok bool
		switch normalizeKey(key) {
		case "scale":
			p.Scale, ok = floatField(v)
		case "rotation":
			p.Rotation, ok = floatField(v)
		case "offset_x":
			p.OffsetX, ok = intField(v)
		case "offset_y":
			p.OffsetY, ok = intField(v)
		case "mirror_h":
			p.MirrorH, ok = boolField(v)
		case "mirror_v":
			p.MirrorV, ok = boolField(v)
		case "background_color":
			p.BackgroundColor, ok = colorField(v)
		case "monitor_index":
			p.MonitorIndex, ok = intField(v)
		case "enabled":
			p.Enabled, ok = boolField(v)
		default:
			continue
		}
		if !ok {
			d.skip(prefix+key, v)
		}
	}
}

func (d *decoder) guide(m map[string]any) *Guide {
	g := &Guide{}
	for _, key := range sortedKeys(m) {
		v := m[key]
		var ok bool
		switch strings.ToLower(key) {
		case "enabled":
			g.Enabled, ok = boolField(v)
		case "x":
			g.X, ok = intField(v)
		case "y":
			g.Y, ok = intField(v)
		case "width":
			g.Width, ok = intField(v)
		case "height":
			g.Height, ok = intField(v)
		default:
			continue
		}
		if !ok {
			d.skip("guide."+key, v)
		}
	}
	return g
}

var keyAliases = map[string]string{
	"offsetx":         "offset_x",
	"offsety":         "offset_y",
	"mirrorh":         "mirror_h",
	"mirrorv":         "mirror_v",
	"backgroundcolor": "background_color",
	"monitorindex":    "monitor_index",
}

// normalizeKey accepts camelCase spellings of the snake_case keys.
func normalizeKey(key string) string {
	k := strings.ToLower(key)
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func floatField(v any) (*float64, bool) {
	f, ok := number(v)
	if !ok {
		return nil, false
	}
	return &f, true
}

// intField accepts any finite number and truncates toward zero.
func intField(v any) (*int, bool) {
	f, ok := number(v)
	if !ok || math.Abs(f) > math.MaxInt32 {
		return nil, false
	}
	i := int(f)
	return &i, true
}

func boolField(v any) (*bool, bool) {
	b, ok := v.(bool)
	if !ok {
		return nil, false
	}
	return &b, true
}

// colorField accepts a three element [r, g, b] list; channels are clamped to 0..255.
func colorField(v any) (*[3]uint8, bool) {
	list, ok := v.([]any)
	if !ok || len(list) != 3 {
		return nil, false
	}
	var rgb [3]uint8
	for i, c := range list {
		f, ok := number(c)
		if !ok {
			return nil, false
		}
		rgb[i] = uint8(math.Max(0, math.Min(255, math.Round(f))))
	}
	return &rgb, true
}
