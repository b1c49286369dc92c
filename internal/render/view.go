// Package render projects feature collections to pixel space and draws them
// as SVG documents or raster images.
package render

import (
	"math"

	"github.com/woozymasta/geoconv/internal/geo"
)

// EarthRadius is the WGS84 semi-major axis used by EPSG:3857.
const EarthRadius = 6378137.0

// MaxZoom caps automatic zoom selection.
const MaxZoom = 18

// View is a Web Mercator viewport: a zoom level and the world pixel at its top-left corner.
type View struct {
	Zoom   float64
	X, Y   float64
	Width  int
	Height int
}

// NewView centres a width x height viewport on b. A zoom <= 0 selects the
// largest zoom at which b fits.
func NewView(b geo.BBox, width, height int, zoom float64) View {
	if zoom <= 0 {
		zoom = geo.FitZoom(b, width, height, MaxZoom)
	}
	x0, y0 := geo.ProjectMercator(b.West, b.North, zoom)
	x1, y1 := geo.ProjectMercator(b.East, b.South, zoom)
	cx, cy := (x0+x1)/2, (y0+y1)/2

	return View{
		Zoom:   zoom,
		X:      cx - float64(width)/2,
		Y:      cy - float64(height)/2,
		Width:  width,
		Height: height,
	}
}

// Project converts lon/lat to viewport pixel coordinates.
func (v View) Project(lon, lat float64) (x, y float64) {
	wx, wy := geo.ProjectMercator(lon, lat, v.Zoom)
	return wx - v.X, wy - v.Y
}

// Bounds returns the viewport envelope in WGS84 degrees.
func (v View) Bounds() geo.BBox {
	west, north := geo.UnprojectMercator(v.X, v.Y, v.Zoom)
	east, south := geo.UnprojectMercator(v.X+float64(v.Width), v.Y+float64(v.Height), v.Zoom)
	return geo.BBox{West: west, South: south, East: east, North: north}
}

// MercatorBounds returns the viewport envelope in EPSG:3857 metres as west, south, east, north.
func (v View) MercatorBounds() [4]float64 {
	size := geo.WorldSize(v.Zoom)
	circ := 2 * math.Pi * EarthRadius
	mx := func(px float64) float64 { return (px/size - 0.5) * circ }
	my := func(py float64) float64 { return (0.5 - py/size) * circ }

	return [4]float64{
		mx(v.X),
		my(v.Y + float64(v.Height)),
		mx(v.X + float64(v.Width)),
		my(v.Y),
	}
}
