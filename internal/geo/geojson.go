// Package geo holds the normal form shared by every parser and serializer:
// ordered features, collections, metadata, rasters and coordinate helpers.
package geo

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a geometry with ordered attribute properties.
// Geometry is nil for attribute-only rows.
type Feature struct {
	ID         any
	Geometry   orb.Geometry
	Properties Properties
}

// NewFeature returns a feature with an empty property set.
func NewFeature(g orb.Geometry) *Feature {
	return &Feature{Geometry: g, Properties: NewProperties(0)}
}

// GeometryType returns the GeoJSON type name of the geometry, or "" when absent.
func (f *Feature) GeometryType() string {
	if f.Geometry == nil {
		return ""
	}
	return f.Geometry.GeoJSONType()
}

// Clone returns a copy with independent properties. Geometry is shared.
func (f *Feature) Clone() *Feature {
	return &Feature{ID: f.ID, Geometry: f.Geometry, Properties: f.Properties.Clone()}
}

type featureJSON struct {
	ID         any               `json:"id,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
	Type       string            `json:"type"`
}

// MarshalJSON encodes the feature as a GeoJSON Feature object.
func (f *Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{Type: "Feature", ID: f.ID, Properties: f.Properties}
	if f.Geometry != nil {
		out.Geometry = geojson.NewGeometry(f.Geometry)
	}
	return json.Marshal(out)
}

// FeatureCollection is the vector normal form.
// Records keeps tabular rows that carried no resolvable geometry.
type FeatureCollection struct {
	Features []*Feature
	Records  []*Feature
	Metadata Metadata
}

// NewFeatureCollection returns an empty collection labelled with label.
func NewFeatureCollection(label string, kind SourceKind) *FeatureCollection {
	return &FeatureCollection{
		Features: []*Feature{},
		Metadata: Metadata{Label: label, SourceKind: kind, GeometryTypes: map[string]int{}},
	}
}

// Append adds features to the collection.
func (fc *FeatureCollection) Append(fs ...*Feature) {
	fc.Features = append(fc.Features, fs...)
}

// Rows returns features followed by geometry-less records, the set tabular exports walk.
func (fc *FeatureCollection) Rows() []*Feature {
	if len(fc.Records) == 0 {
		return fc.Features
	}
	rows := make([]*Feature, 0, len(fc.Features)+len(fc.Records))
	rows = append(rows, fc.Features...)
	return append(rows, fc.Records...)
}

// WithFeatures returns a collection sharing metadata but holding fs.
func (fc *FeatureCollection) WithFeatures(fs []*Feature) *FeatureCollection {
	out := &FeatureCollection{Features: fs, Metadata: fc.Metadata}
	if out.Features == nil {
		out.Features = []*Feature{}
	}
	return out
}

type collectionJSON struct {
	Metadata *Metadata  `json:"metadata,omitempty"`
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// MarshalJSON encodes a GeoJSON FeatureCollection without the metadata member.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{Type: "FeatureCollection", Features: fc.nonNil()})
}

// MarshalWithMetadata encodes a FeatureCollection carrying metadata as a foreign member.
func (fc *FeatureCollection) MarshalWithMetadata() ([]byte, error) {
	md := fc.Metadata
	return json.Marshal(collectionJSON{Type: "FeatureCollection", Features: fc.nonNil(), Metadata: &md})
}

func (fc *FeatureCollection) nonNil() []*Feature {
	if fc.Features == nil {
		return []*Feature{}
	}
	return fc.Features
}
