package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

// Header names, in priority order, recognised as coordinate columns.
var (
	combinedColumns = []string{"location", "coordinates", "point", "geometry", "latlng", "latlon", "coord", "the_geom", "geom", "wkt"}
	latColumns      = []string{"latitude", "lat", "y", "y_coord", "lat_dd", "ycoord", "point_y", "lat_deg"}
	lonColumns      = []string{"longitude", "lon", "lng", "long", "x", "x_coord", "lon_dd", "long_dd", "xcoord", "point_x", "lon_deg"}
)

// Geometry types a combined column may carry as WKT.
var wktColumnTypes = map[string]bool{
	"Point": true, "Polygon": true, "MultiPolygon": true, "LineString": true,
}

// fuzzySlack is the number of extra characters allowed by a prefix/suffix header match.
const fuzzySlack = 3

type coordColumns struct {
	choice   geo.ColumnChoice
	combined int
	lat, lon int
}

// detectColumns finds coordinate columns: combined first, then an exact lat/lon pair,
// then a bounded prefix/suffix match.
func detectColumns(headers []string) (coordColumns, bool) {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	find := func(name string) int {
		for i, h := range lower {
			if h == name {
				return i
			}
		}
		return -1
	}

	for _, name := range combinedColumns {
		if i := find(name); i >= 0 {
			return coordColumns{
				combined: i, lat: -1, lon: -1,
				choice: geo.ColumnChoice{Combined: headers[i], Match: "combined"},
			}, true
		}
	}

	exact := func(names []string) int {
		for _, name := range names {
			if i := find(name); i >= 0 {
				return i
			}
		}
		return -1
	}
	fuzzy := func(names []string, exclude int) int {
		for _, name := range names {
			if len(name) < 3 {
				continue
			}
			for i, h := range lower {
				if i == exclude || len(h)-len(name) > fuzzySlack {
					continue
				}
				if strings.HasPrefix(h, name) || strings.HasSuffix(h, name) {
					return i
				}
			}
		}
		return -1
	}

	match := "exact"
	lat, lon := exact(latColumns), exact(lonColumns)
	if lat < 0 {
		lat = fuzzy(latColumns, lon)
		match = "fuzzy"
	}
	if lon < 0 {
		lon = fuzzy(lonColumns, lat)
		match = "fuzzy"
	}
	if lat < 0 || lon < 0 || lat == lon {
		return coordColumns{}, false
	}

	return coordColumns{
		combined: -1, lat: lat, lon: lon,
		choice: geo.ColumnChoice{Lat: headers[lat], Lon: headers[lon], Match: match},
	}, true
}

// buildTable converts a header plus rows into features, shared by CSV and Excel.
func buildTable(fc *geo.FeatureCollection, headers []string, rows [][]string) {
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("field_%d", i+1)
		}
	}

	cols, ok := detectColumns(headers)
	if !ok {
		for _, row := range rows {
			rec := geo.NewFeature(nil)
			rec.Properties = rowProperties(headers, row, -1, -1)
			fc.Records = append(fc.Records, rec)
		}
		fc.Metadata.Warn("no coordinate columns detected; %d row(s) kept for tabular export", len(rows))
		return
	}

	fc.Metadata.Columns = &cols.choice
	dropped := 0
	for i, row := range rows {
		var (
			g    orb.Geometry
			alts []*float64
			err  error
		)
		if cols.combined >= 0 {
			g, alts, err = combinedGeometry(cell(row, cols.combined))
		} else {
			g, err = pairGeometry(cell(row, cols.lat), cell(row, cols.lon))
		}
		if err != nil {
			fc.Metadata.Drop(i, err)
			dropped++
			continue
		}

		f := geo.NewFeature(g)
		if cols.combined >= 0 {
			f.Properties = rowProperties(headers, row, cols.combined, -1)
		} else {
			f.Properties = rowProperties(headers, row, cols.lat, cols.lon)
		}
		if ele := geo.ShapeElevation(g, alts); ele != nil {
			f.Properties.Set(geo.ElevationKey, ele)
		}
		fc.Append(f)
	}
	if dropped > 0 {
		fc.Metadata.Warn("%d row(s) without recoverable coordinates dropped", dropped)
	}
}

func rowProperties(headers, row []string, skipA, skipB int) geo.Properties {
	props := geo.NewProperties(len(headers))
	for i, h := range headers {
		if i == skipA || i == skipB {
			continue
		}
		props.Set(h, typedValue(cell(row, i)))
	}
	return props
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// combinedGeometry reads a WKT or "lat, lng" cell; WKT Z ordinates come back as altitudes.
func combinedGeometry(s string) (orb.Geometry, []*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "empty coordinate cell")
	}
	if g, alts, err := geo.ParseWKTZ(s); err == nil && wktColumnTypes[g.GeoJSONType()] {
		return g, alts, nil
	}

	a, b, err := splitPair(s)
	if err != nil {
		return nil, nil, err
	}
	lat, lng := a, b
	if (a < -90 || a > 90) && b >= -90 && b <= 90 {
		lat, lng = b, a
	}
	return orb.Point{lng, lat}, nil, nil
}

func splitPair(s string) (float64, float64, error) {
	s = strings.Trim(s, "[]() ")
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}
	if len(parts) != 2 {
		return 0, 0, geo.Errorf(geo.KindCoordinateInvalid, "unrecognised coordinate %q", s)
	}
	a, err1 := parseNumber(parts[0])
	b, err2 := parseNumber(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, geo.Errorf(geo.KindCoordinateInvalid, "unrecognised coordinate %q", s)
	}
	return a, b, nil
}

func pairGeometry(latText, lonText string) (orb.Geometry, error) {
	lat, err := parseNumber(latText)
	if err != nil {
		return nil, geo.Errorf(geo.KindCoordinateInvalid, "invalid latitude %q", latText)
	}
	lon, err := parseNumber(lonText)
	if err != nil {
		return nil, geo.Errorf(geo.KindCoordinateInvalid, "invalid longitude %q", lonText)
	}
	return orb.Point{lon, lat}, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !numeric(s) {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// numeric reports whether s is a plain decimal number (no hex, inf or nan forms).
func numeric(s string) bool {
	if s == "" {
		return false
	}
	digits := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r == '+' || r == '-':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return false
			}
		case r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return digits
}

// typedValue types a text cell: empty to nil, true/false to bool, numbers to float64.
// Numbers with a leading zero such as postcodes stay strings.
func typedValue(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	switch strings.ToLower(t) {
	case "true":
		return true
	case "false":
		return false
	}
	if len(t) > 1 && t[0] == '0' && t[1] >= '0' && t[1] <= '9' {
		return s
	}
	if v, err := parseNumber(t); err == nil {
		return v
	}
	return s
}
