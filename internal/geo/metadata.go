package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// BBox is a WGS84 axis-aligned envelope.
type BBox struct {
	West  float64 `json:"west" yaml:"west"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	North float64 `json:"north" yaml:"north"`
}

// Contains reports whether lon/lat lies within b or on its boundary.
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}

// Bound converts b to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Extend grows b to include o.
func (b BBox) Extend(o BBox) BBox {
	return BBox{
		West:  math.Min(b.West, o.West),
		South: math.Min(b.South, o.South),
		East:  math.Max(b.East, o.East),
		North: math.Max(b.North, o.North),
	}
}

// ColumnChoice records which columns a tabular parser used for coordinates.
type ColumnChoice struct {
	Combined string `json:"combined,omitempty"`
	Lat      string `json:"lat,omitempty"`
	Lon      string `json:"lon,omitempty"`
	Match    string `json:"match,omitempty"`
}

// Metadata describes a parsed collection.
type Metadata struct {
	BBox          *BBox          `json:"bbox,omitempty"`
	Columns       *ColumnChoice  `json:"columns,omitempty"`
	GeometryTypes map[string]int `json:"geometryTypes"`
	Label         string         `json:"label"`
	SourceKind    SourceKind     `json:"sourceKind"`
	Sheet         string         `json:"sheet,omitempty"`
	TimeFields    []string       `json:"timeFields,omitempty"`
	Layers        []string       `json:"layers,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Dropped       int            `json:"dropped"`
}

// Warn appends a formatted warning.
func (m *Metadata) Warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

// Drop counts a discarded feature and logs the reason.
func (m *Metadata) Drop(index int, err error) {
	m.Dropped++
	log.Debug().Str("dataset", m.Label).Int("index", index).Err(err).Msg("Feature dropped")
}

// ComputeBBox returns the envelope of all finite coordinates, or nil when there are none.
func ComputeBBox(features []*Feature) *BBox {
	var b *BBox
	for _, f := range features {
		EachPoint(f.Geometry, func(p orb.Point) bool {
			lon, lat := p[0], p[1]
			if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
				return true
			}
			if b == nil {
				b = &BBox{West: lon, East: lon, South: lat, North: lat}
				return true
			}
			b.West = math.Min(b.West, lon)
			b.East = math.Max(b.East, lon)
			b.South = math.Min(b.South, lat)
			b.North = math.Max(b.North, lat)
			return true
		})
	}
	return b
}

// Normalize finishes a freshly parsed collection: trims property keys, drops
// features with invalid geometry, and fills bbox, histogram and time fields.
func Normalize(fc *FeatureCollection) {
	kept := fc.Features[:0]
	dropped := 0
	for i, f := range fc.Features {
		if err := ValidateGeometry(f.Geometry); err != nil {
			fc.Metadata.Drop(i, err)
			dropped++
			continue
		}
		f.Properties.TrimKeys()
		kept = append(kept, f)
	}
	for i := len(kept); i < len(fc.Features); i++ {
		fc.Features[i] = nil
	}
	fc.Features = kept
	if dropped > 0 {
		fc.Metadata.Warn("%d feature(s) with invalid coordinates dropped", dropped)
	}
	for _, r := range fc.Records {
		r.Properties.TrimKeys()
	}

	fc.Metadata.BBox = ComputeBBox(fc.Features)
	fc.Metadata.GeometryTypes = GeometryHistogram(fc.Features)
	fc.Metadata.TimeFields = CandidateTimeFields(fc.Rows())
}

// GeometryHistogram counts features by GeoJSON geometry type.
func GeometryHistogram(features []*Feature) map[string]int {
	h := make(map[string]int)
	for _, f := range features {
		if t := f.GeometryType(); t != "" {
			h[t]++
		}
	}
	return h
}

var timeNameHints = []string{"time", "date", "timestamp", "epoch", "when"}

func timeNamed(key string) bool {
	k := strings.ToLower(key)
	if k == "t" || k == "ts" {
		return true
	}
	for _, hint := range timeNameHints {
		if strings.Contains(k, hint) {
			return true
		}
	}
	return false
}

// CandidateTimeFields lists keys, in first-seen order, whose values look like timestamps:
// ISO strings for at least half of the non-null values, or numbers under a time-like name.
func CandidateTimeFields(features []*Feature) []string {
	type tally struct{ total, iso, numeric int }
	var order []string
	counts := make(map[string]*tally)

	for _, f := range features {
		for _, k := range f.Properties.Keys() {
			v, _ := f.Properties.Get(k)
			if v == nil {
				continue
			}
			c, ok := counts[k]
			if !ok {
				c = &tally{}
				counts[k] = c
				order = append(order, k)
			}
			c.total++
			switch x := v.(type) {
			case string:
				if _, ok := ParseTime(x); ok {
					c.iso++
				}
			default:
				if _, ok := TimeValue(x); ok {
					c.numeric++
				}
			}
		}
	}

	var out []string
	for _, k := range order {
		c := counts[k]
		if c.iso > 0 && c.iso*2 >= c.total {
			out = append(out, k)
		} else if c.numeric == c.total && timeNamed(k) {
			out = append(out, k)
		}
	}
	return out
}
