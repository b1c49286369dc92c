package dataset

import (
	"fmt"

	"github.com/woozymasta/geoconv/internal/geo"
)

// SymbologyKind selects how features are coloured.
type SymbologyKind string

const (
	SymbologySingle      SymbologyKind = "single"
	SymbologyCategorical SymbologyKind = "categorical"
)

// DefaultColor is the fill and stroke colour of an unstyled dataset.
const DefaultColor = "#3388ff"

// Palette used when categories are assigned automatically.
var Palette = []string{
	"#e41a1c", "#377eb8", "#4daf4a", "#984ea3", "#ff7f00",
	"#ffff33", "#a65628", "#f781bf", "#999999", "#66c2a5",
}

// Symbology is either a single colour or a field-driven category mapping.
type Symbology struct {
	Categories map[string]string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Kind       SymbologyKind     `json:"kind" yaml:"kind"`
	Color      string            `json:"color,omitempty" yaml:"color,omitempty"`
	Field      string            `json:"field,omitempty" yaml:"field,omitempty"`
	Default    string            `json:"default,omitempty" yaml:"default,omitempty"`
}

// Style is the per-dataset rendering state.
type Style struct {
	Symbology   *Symbology `json:"symbology,omitempty" yaml:"symbology,omitempty"`
	Color       string     `json:"color" yaml:"color"`
	Weight      float64    `json:"weight" yaml:"weight"`
	Radius      float64    `json:"radius" yaml:"radius"`
	FillOpacity float64    `json:"fillOpacity" yaml:"fill_opacity"`
}

// DefaultStyle returns the style given to new datasets.
func DefaultStyle() Style {
	return Style{Color: DefaultColor, Weight: 2, Radius: 5, FillOpacity: 0.35}
}

// ColorFor returns the colour of a feature with properties props.
func (s Style) ColorFor(props geo.Properties) string {
	base := s.Color
	if base == "" {
		base = DefaultColor
	}
	sym := s.Symbology
	if sym == nil {
		return base
	}

	switch sym.Kind {
	case SymbologySingle:
		if sym.Color != "" {
			return sym.Color
		}
	case SymbologyCategorical:
		if v, ok := props.Get(sym.Field); ok && v != nil {
			if c, ok := sym.Categories[CategoryKey(v)]; ok {
				return c
			}
		}
		if sym.Default != "" {
			return sym.Default
		}
	}
	return base
}

// CategoryKey renders a property value as a category map key.
func CategoryKey(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Categorize builds a categorical symbology over field, assigning palette
// colours to distinct values in first-seen order.
func Categorize(field string, features []*geo.Feature) *Symbology {
	sym := &Symbology{Kind: SymbologyCategorical, Field: field, Categories: map[string]string{}, Default: Palette[len(Palette)-2]}
	for _, f := range features {
		v, ok := f.Properties.Get(field)
		if !ok || v == nil {
			continue
		}
		key := CategoryKey(v)
		if _, seen := sym.Categories[key]; seen {
			continue
		}
		sym.Categories[key] = Palette[len(sym.Categories)%len(Palette)]
	}
	return sym
}

// Validate checks symbology consistency.
func (s *Symbology) Validate() error {
	switch s.Kind {
	case SymbologySingle:
		if s.Color == "" {
			return geo.Errorf(geo.KindInputShape, "single symbology requires a color")
		}
	case SymbologyCategorical:
		if s.Field == "" {
			return geo.Errorf(geo.KindInputShape, "categorical symbology requires a field")
		}
	default:
		return geo.Errorf(geo.KindInputShape, "unknown symbology kind %q", s.Kind)
	}
	return nil
}
