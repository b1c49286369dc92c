package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

// CSV layout: property columns in first-seen key order, then the geometry
// columns. In wkt mode a single "geometry" column holds WKT. In latlng mode
// points fill "lng" and "lat"; a "geometry" WKT column for every row follows
// only when non-point geometries are present. Geometries whose every vertex
// has an altitude are written as WKT Z.
func encodeCSV(_ *Exporter, r *request) ([]byte, error) {
	rows := r.fc.Rows()
	keys := headerKeys(rows)

	latlng := r.cfg.CSVGeometry == CSVGeometryLatLng
	wktColumn := !latlng
	if latlng {
		for _, f := range rows {
			if _, ok := f.Geometry.(orb.Point); !ok && f.Geometry != nil {
				wktColumn = true
				break
			}
		}
	}

	var b bytes.Buffer
	header := append([]string(nil), keys...)
	if latlng {
		header = append(header, "lng", "lat")
	}
	if wktColumn {
		header = append(header, "geometry")
	}
	writeCSVRow(&b, header)

	cells := make([]string, 0, len(header))
	for _, f := range rows {
		cells = cells[:0]
		for _, k := range keys {
			v, _ := f.Properties.Get(k)
			cells = append(cells, cellValue(v))
		}

		p, isPoint := f.Geometry.(orb.Point)
		if latlng {
			if isPoint {
				cells = append(cells, formatCoord(p[0]), formatCoord(p[1]))
			} else {
				cells = append(cells, "", "")
			}
		}
		if wktColumn {
			if f.Geometry == nil {
				cells = append(cells, "")
			} else {
				cells = append(cells, geo.MarshalWKTZ(f.Geometry, f.Elevation()))
			}
		}
		writeCSVRow(&b, cells)
	}
	return b.Bytes(), nil
}

// headerKeys returns the union of property keys in first-seen order.
func headerKeys(rows []*geo.Feature) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range rows {
		for _, k := range f.Properties.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func writeCSVRow(b *bytes.Buffer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteCSV(c))
	}
	b.WriteString("\r\n")
}

// quoteCSV quotes cells containing a comma, double quote, CR or LF and
// doubles inner quotes.
func quoteCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func cellValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case int, int32, int64, uint, uint32, uint64, float32:
		return fmt.Sprint(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
