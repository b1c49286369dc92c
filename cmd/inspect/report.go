package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentFg  = lipgloss.Color("#7C3AED")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	warnFg    = lipgloss.Color("#F59E0B")
	errorFg   = lipgloss.Color("#EF4444")
	borderCol = lipgloss.Color("#243141")

	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(baseDimFg).Width(12)
	warnStyle  = lipgloss.NewStyle().Foreground(warnFg)
	errorStyle = lipgloss.NewStyle().Foreground(errorFg)
)

// Report describes one parsed dataset.
type Report struct {
	BBox          *geo.BBox      `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Raster        *RasterInfo    `json:"raster,omitempty" yaml:"raster,omitempty"`
	GeometryTypes map[string]int `json:"geometryTypes,omitempty" yaml:"geometry_types,omitempty"`
	Label         string         `json:"label" yaml:"label"`
	Kind          geo.SourceKind `json:"kind" yaml:"kind"`
	Sheet         string         `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	Columns       string         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
	Files         []string       `json:"files" yaml:"files"`
	Properties    []string       `json:"properties,omitempty" yaml:"properties,omitempty"`
	TimeFields    []string       `json:"timeFields,omitempty" yaml:"time_fields,omitempty"`
	Layers        []string       `json:"layers,omitempty" yaml:"layers,omitempty"`
	Warnings      []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Features      int            `json:"features" yaml:"features"`
	Dropped       int            `json:"dropped" yaml:"dropped"`
}

// RasterInfo summarizes a GeoTIFF dataset.
type RasterInfo struct {
	Width           int `json:"width" yaml:"width"`
	Height          int `json:"height" yaml:"height"`
	SamplesPerPixel int `json:"samplesPerPixel" yaml:"samples_per_pixel"`
	EPSG            int `json:"epsg,omitempty" yaml:"epsg,omitempty"`
}

// newReport parses d through ws and summarizes the result.
func newReport(ws *dataset.Workspace, d *dataset.Dataset) Report {
	rep := Report{Label: d.Label, Kind: d.Kind, Files: d.FileNames()}

	fc, raster, err := ws.Parse(d.UID)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	if raster != nil {
		rep.BBox = raster.BBox
		rep.Warnings = raster.Warnings
		rep.Raster = &RasterInfo{
			Width:           raster.Width,
			Height:          raster.Height,
			SamplesPerPixel: raster.SamplesPerPixel,
			EPSG:            raster.EPSG,
		}
		return rep
	}

	md := fc.Metadata
	rep.BBox = md.BBox
	rep.GeometryTypes = md.GeometryTypes
	rep.Sheet = md.Sheet
	rep.TimeFields = md.TimeFields
	rep.Layers = md.Layers
	rep.Warnings = md.Warnings
	rep.Features = len(fc.Features)
	rep.Dropped = md.Dropped
	rep.Properties = propertyKeys(fc.Features)
	if c := md.Columns; c != nil {
		if c.Combined != "" {
			rep.Columns = c.Combined
		} else {
			rep.Columns = c.Lat + ", " + c.Lon
		}
	}
	return rep
}

// propertyKeys returns property names in first-seen order.
func propertyKeys(features []*geo.Feature) []string {
	seen := map[string]bool{}
	var keys []string
	for _, f := range features {
		for _, k := range f.Properties.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// renderTable draws one bordered box per report.
func renderTable(reports []Report) string {
	boxes := make([]string, 0, len(reports))
	for _, r := range reports {
		boxes = append(boxes, boxStyle.Render(renderReport(r)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...) + "\n"
}

func renderReport(r Report) string {
	lines := []string{titleStyle.Render(r.Label)}
	row := func(key, value string) {
		if value != "" {
			lines = append(lines, keyStyle.Render(key)+value)
		}
	}

	row("kind", string(r.Kind))
	row("files", strings.Join(r.Files, ", "))
	if r.Error != "" {
		lines = append(lines, errorStyle.Render(r.Error))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	if r.Raster != nil {
		row("size", fmt.Sprintf("%dx%d, %d bands", r.Raster.Width, r.Raster.Height, r.Raster.SamplesPerPixel))
		if r.Raster.EPSG != 0 {
			row("crs", fmt.Sprintf("EPSG:%d", r.Raster.EPSG))
		}
	} else {
		row("features", fmt.Sprintf("%d (%d dropped)", r.Features, r.Dropped))
		row("geometry", histogram(r.GeometryTypes))
		row("properties", strings.Join(r.Properties, ", "))
		row("columns", r.Columns)
		row("sheet", r.Sheet)
		row("layers", strings.Join(r.Layers, ", "))
		row("time", strings.Join(r.TimeFields, ", "))
	}
	if b := r.BBox; b != nil {
		row("bbox", fmt.Sprintf("%.6f, %.6f, %.6f, %.6f", b.West, b.South, b.East, b.North))
	}
	for _, w := range r.Warnings {
		lines = append(lines, warnStyle.Render("! "+w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// histogram renders counts as "Point 3, Polygon 1" sorted by type.
func histogram(h map[string]int) string {
	types := make([]string, 0, len(h))
	for t := range h {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s %d", t, h[t]))
	}
	return strings.Join(parts, ", ")
}
