package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"testing"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

func collection(geoms ...orb.Geometry) *geo.FeatureCollection {
	fc := geo.NewFeatureCollection("test", geo.SourceGeoJSON)
	for _, g := range geoms {
		fc.Append(geo.NewFeature(g))
	}
	return fc
}

func TestNewView(t *testing.T) {
	b := geo.BBox{West: -10, South: -5, East: 10, North: 5}
	v := NewView(b, 400, 300, 0)

	if v.Zoom <= 0 || v.Zoom > MaxZoom {
		t.Fatalf("zoom = %v", v.Zoom)
	}
	x, y := v.Project(0, 0)
	if math.Abs(x-200) > 1e-6 || math.Abs(y-150) > 1e-6 {
		t.Errorf("centre projects to %v,%v", x, y)
	}

	vb := v.Bounds()
	if vb.West > b.West || vb.East < b.East || vb.South > b.South || vb.North < b.North {
		t.Errorf("view bounds %+v do not cover %+v", vb, b)
	}
}

func TestMercatorBounds(t *testing.T) {
	v := View{Zoom: 0, Width: 256, Height: 256}
	got := v.MercatorBounds()
	const edge = 20037508.342789244
	want := [4]float64{-edge, -edge, edge, edge}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-3 {
			t.Errorf("bound %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBuildClipsOutsideMercatorBand(t *testing.T) {
	fc := collection(
		orb.Point{0, 89},
		orb.Point{0, 0},
		orb.LineString{{0, 0}, {1, 1}},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
	)
	v := NewView(geo.BBox{West: -1, South: -1, East: 2, North: 2}, 100, 100, 0)
	s := Build(v, Layer{Collection: fc, Style: dataset.DefaultStyle()})

	if s.Clipped != 1 {
		t.Errorf("clipped = %d, want 1", s.Clipped)
	}
	kinds := map[ShapeKind]int{}
	for _, sh := range s.Shapes {
		kinds[sh.Kind]++
	}
	if kinds[ShapeMarker] != 1 || kinds[ShapeFill] != 1 || kinds[ShapeStroke] != 2 {
		t.Errorf("shape kinds = %v", kinds)
	}
}

func TestBuildUsesSymbology(t *testing.T) {
	fc := collection(orb.Point{0, 0}, orb.Point{1, 1})
	fc.Features[0].Properties.Set("kind", "a")
	fc.Features[1].Properties.Set("kind", "b")

	style := dataset.DefaultStyle()
	style.Symbology = &dataset.Symbology{
		Kind:       dataset.SymbologyCategorical,
		Field:      "kind",
		Categories: map[string]string{"a": "#ff0000", "b": "#00ff00"},
	}
	s := Build(NewView(geo.BBox{East: 1, North: 1}, 64, 64, 0), Layer{Collection: fc, Style: style})

	if len(s.Shapes) != 2 {
		t.Fatalf("shapes = %d", len(s.Shapes))
	}
	if Hex(s.Shapes[0].Color) != "#ff0000" || Hex(s.Shapes[1].Color) != "#00ff00" {
		t.Errorf("colours = %s, %s", Hex(s.Shapes[0].Color), Hex(s.Shapes[1].Color))
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#ff8800", "#ff8800"},
		{"#f80", "#ff8800"},
		{"  #ABCDEF ", "#abcdef"},
		{"not a colour", dataset.DefaultColor},
		{"", dataset.DefaultColor},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Hex(ParseColor(tt.in)); got != tt.want {
				t.Errorf("ParseColor(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSVG(t *testing.T) {
	fc := collection(
		orb.Point{0.5, 0.5},
		orb.LineString{{0, 0}, {1, 1}},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
	)
	s := Build(NewView(geo.BBox{East: 1, North: 1}, 120, 80, 0), Layer{Collection: fc, Style: dataset.DefaultStyle()})

	out, err := SVG(s, "a & b")
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)
	if !strings.HasPrefix(doc, "<svg") || !strings.HasSuffix(doc, "</svg>") {
		t.Errorf("not an svg document: %s", doc)
	}
	if !strings.Contains(doc, "a &amp; b") {
		t.Errorf("title not escaped: %s", doc)
	}
	if n := strings.Count(doc, "<path"); n < 3 {
		t.Errorf("path count = %d, want >= 3", n)
	}
}

func TestRasterizeFillsPolygonWithHole(t *testing.T) {
	fc := collection(orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {4, 6}, {6, 6}, {6, 4}, {4, 4}},
	})
	style := dataset.DefaultStyle()
	style.Color = "#ff0000"
	style.FillOpacity = 1
	style.Weight = 1

	v := NewView(geo.BBox{West: -5, South: -5, East: 15, North: 15}, 100, 100, 0)
	s := Build(v, Layer{Collection: fc, Style: style})

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	Rasterize(img, s)

	at := func(lon, lat float64) color.RGBA {
		x, y := v.Project(lon, lat)
		return img.RGBAAt(int(x), int(y))
	}
	if c := at(2, 2); c.R != 255 || c.G > 10 || c.B > 10 {
		t.Errorf("filled pixel = %v, want red", c)
	}
	if c := at(5, 5); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("hole pixel = %v, want white", c)
	}
	if c := img.RGBAAt(0, 0); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("corner pixel = %v, want white", c)
	}
}
