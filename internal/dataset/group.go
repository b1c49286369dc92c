package dataset

import (
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"
)

// Shapefile sidecar extensions grouped by stem.
var shapefileParts = map[string]bool{
	"shp": true, "shx": true, "dbf": true, "prj": true,
	"sbn": true, "sbx": true, "cpg": true,
}

// Extension to kind table; the first matching row wins.
var extensionKinds = []struct {
	kind geo.SourceKind
	exts []string
}{
	{geo.SourceGeoJSON, []string{"geojson", "json"}},
	{geo.SourceKML, []string{"kml"}},
	{geo.SourceKMZ, []string{"kmz"}},
	{geo.SourceGPX, []string{"gpx"}},
	{geo.SourceCSV, []string{"csv"}},
	{geo.SourceExcel, []string{"xlsx", "xls"}},
	{geo.SourceGeoTIFF, []string{"tif", "tiff"}},
	{geo.SourceShapefile, []string{"zip"}},
}

// KindForExtension maps a lower-case extension to a source kind.
func KindForExtension(ext string) geo.SourceKind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, row := range extensionKinds {
		for _, e := range row.exts {
			if e == ext {
				return row.kind
			}
		}
	}
	return geo.SourceUnknown
}

type shapefileBucket struct {
	stem  string
	files []Source
	has   map[string]bool
}

// Group partitions uploaded files into datasets. Zips become shapefile
// candidates, shapefile components are bucketed by stem and everything
// else is a singleton typed by extension. Errors are non-fatal.
func Group(files []Source) ([]*Dataset, []error) {
	var (
		zips       []*Dataset
		singletons []*Dataset
		buckets    []*shapefileBucket
		errs       []error
	)
	byStem := make(map[string]*shapefileBucket)

	for _, f := range files {
		name := f.Name()
		ext := Ext(name)
		switch {
		case ext == "zip":
			zips = append(zips, New(Stem(name), geo.SourceShapefile, f))
		case shapefileParts[ext]:
			key := strings.ToLower(Stem(name))
			b, ok := byStem[key]
			if !ok {
				b = &shapefileBucket{stem: Stem(name), has: map[string]bool{}}
				byStem[key] = b
				buckets = append(buckets, b)
			}
			b.files = append(b.files, f)
			b.has[ext] = true
		default:
			singletons = append(singletons, New(name, KindForExtension(ext), f))
		}
	}

	out := make([]*Dataset, 0, len(zips)+len(buckets)+len(singletons))
	out = append(out, zips...)
	for _, b := range buckets {
		var missing []string
		for _, req := range []string{"shp", "dbf"} {
			if !b.has[req] {
				missing = append(missing, "."+req)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, geo.Errorf(geo.KindIncomplete,
				"incomplete shapefile set %s: missing %s", b.stem, strings.Join(missing, ", ")))
			continue
		}
		out = append(out, New(b.stem, geo.SourceShapefile, b.files...))
	}
	out = append(out, singletons...)

	return out, errs
}
