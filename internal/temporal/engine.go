// Package temporal indexes features by a timestamp property and serves
// time-filtered views of a set of datasets.
package temporal

import (
	"fmt"
	"math"
	"sort"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/rs/zerolog/log"
)

// Mode selects how the visible interval is derived.
type Mode string

const (
	ModeFull       Mode = "full"       // whole domain
	ModeWindow     Mode = "window"     // fixed [RangeStart, RangeEnd]
	ModeMoving     Mode = "moving"     // window of fixed width ending at the cursor
	ModeCumulative Mode = "cumulative" // everything up to the cursor
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModeWindow, ModeMoving, ModeCumulative:
		return m, nil
	case "":
		return ModeFull, nil
	}
	return "", geo.Errorf(geo.KindInputShape, "unknown temporal mode %q", s)
}

// windowed reports whether playback stops at the upper bound instead of wrapping.
func (m Mode) windowed() bool {
	return m == ModeWindow || m == ModeMoving
}

// State is the user-controlled part of a temporal view. Times are epoch milliseconds.
type State struct {
	Mode       Mode    `json:"mode" yaml:"mode"`
	RangeStart float64 `json:"rangeStart" yaml:"range_start"`
	RangeEnd   float64 `json:"rangeEnd" yaml:"range_end"`
	Cursor     float64 `json:"cursor" yaml:"cursor"`
}

// Domain is the global time extent of the indexed datasets.
type Domain struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Known bool    `json:"known"`
}

// Clamp limits t to the domain.
func (d Domain) Clamp(t float64) float64 {
	return math.Max(d.Min, math.Min(d.Max, t))
}

// entry pairs a feature with its parsed timestamp.
type entry struct {
	feature *geo.Feature
	time    float64
}

// index is the time-sorted view of one dataset.
type index struct {
	source  *geo.FeatureCollection
	entries []entry
	skipped int
}

// Engine filters a fixed list of datasets by one timestamp property.
// It never mutates the datasets it was built from.
type Engine struct {
	field   string
	indexes []index
	domain  Domain
}

// NewEngine indexes datasets by field. Features whose field value is not a
// time are left out of the index.
func NewEngine(field string, datasets ...*geo.FeatureCollection) *Engine {
	e := &Engine{field: field, indexes: make([]index, len(datasets))}

	for i, fc := range datasets {
		idx := index{source: fc}
		if fc != nil {
			for _, f := range fc.Features {
				v, ok := f.Properties.Get(field)
				if !ok {
					idx.skipped++
					continue
				}
				t, ok := geo.TimeValue(v)
				if !ok {
					idx.skipped++
					continue
				}
				idx.entries = append(idx.entries, entry{feature: f, time: t})
			}
		}
		sort.SliceStable(idx.entries, func(a, b int) bool {
			return idx.entries[a].time < idx.entries[b].time
		})

		if n := len(idx.entries); n > 0 {
			lo, hi := idx.entries[0].time, idx.entries[n-1].time
			if !e.domain.Known {
				e.domain = Domain{Min: lo, Max: hi, Known: true}
			} else {
				e.domain.Min = math.Min(e.domain.Min, lo)
				e.domain.Max = math.Max(e.domain.Max, hi)
			}
		}
		e.indexes[i] = idx
	}

	log.Debug().
		Str("field", field).
		Int("datasets", len(datasets)).
		Bool("known", e.domain.Known).
		Msg("Temporal index built")

	return e
}

// Field returns the indexed property name.
func (e *Engine) Field() string { return e.field }

// Domain returns the global time extent.
func (e *Engine) Domain() Domain { return e.domain }

// Indexed returns the number of indexed features per dataset.
func (e *Engine) Indexed() []int {
	out := make([]int, len(e.indexes))
	for i, idx := range e.indexes {
		out[i] = len(idx.entries)
	}
	return out
}

// Skipped returns the number of features per dataset without a usable timestamp.
func (e *Engine) Skipped() []int {
	out := make([]int, len(e.indexes))
	for i, idx := range e.indexes {
		out[i] = idx.skipped
	}
	return out
}

// Bounds returns the visible interval of s, clamped to the domain.
func (e *Engine) Bounds(s State) (lower, upper float64) {
	d := e.domain
	switch s.Mode {
	case ModeWindow:
		lower, upper = d.Clamp(s.RangeStart), d.Clamp(s.RangeEnd)
		if lower > upper {
			lower, upper = upper, lower
		}
		return lower, upper
	case ModeMoving:
		width := math.Abs(s.RangeEnd - s.RangeStart)
		return d.Clamp(s.Cursor - width), d.Clamp(s.Cursor)
	}
	return d.Min, d.Max
}

// CursorRange is the interval the cursor may take in s.Mode.
func (e *Engine) CursorRange(s State) (lower, upper float64) {
	if s.Mode == ModeWindow {
		return e.Bounds(s)
	}
	return e.domain.Min, e.domain.Max
}

// Filter returns one collection per dataset, in input order, holding the
// indexed features with lower <= t <= upper and t <= cursor, in time order.
// With an unknown domain every dataset passes through unfiltered.
func (e *Engine) Filter(s State) []*geo.FeatureCollection {
	out := make([]*geo.FeatureCollection, len(e.indexes))
	if !e.domain.Known {
		for i, idx := range e.indexes {
			if idx.source != nil {
				out[i] = idx.source.WithFeatures(append([]*geo.Feature(nil), idx.source.Features...))
			}
		}
		return out
	}

	lower, upper := e.Bounds(s)
	if s.Mode == ModeCumulative {
		lower = math.Inf(-1)
	}
	upper = math.Min(upper, s.Cursor)

	for i, idx := range e.indexes {
		if idx.source == nil {
			continue
		}
		from := sort.Search(len(idx.entries), func(k int) bool { return idx.entries[k].time >= lower })
		to := sort.Search(len(idx.entries), func(k int) bool { return idx.entries[k].time > upper })

		features := make([]*geo.Feature, 0, max(0, to-from))
		for _, en := range idx.entries[from:max(from, to)] {
			features = append(features, en.feature)
		}
		fc := idx.source.WithFeatures(features)
		fc.Metadata.BBox = geo.ComputeBBox(features)
		out[i] = fc
	}
	return out
}

// Counts returns the feature count of each filtered collection.
func Counts(fcs []*geo.FeatureCollection) []int {
	out := make([]int, len(fcs))
	for i, fc := range fcs {
		if fc != nil {
			out[i] = len(fc.Features)
		}
	}
	return out
}

// Describe renders the interval of s for logs.
func (e *Engine) Describe(s State) string {
	if !e.domain.Known {
		return "unknown domain"
	}
	lower, upper := e.Bounds(s)
	return fmt.Sprintf("%s [%s .. %s] cursor %s", s.Mode, geo.FormatTime(lower), geo.FormatTime(upper), geo.FormatTime(s.Cursor))
}
