package geo

import "math"

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// TileSize is the pixel edge of a slippy-map tile.
const TileSize = 256.0

// ClampLat limits lat to the Web Mercator range.
func ClampLat(lat float64) float64 {
	if lat > MaxLat {
		return MaxLat
	} else if lat < -MaxLat {
		return -MaxLat
	}
	return lat
}

// WorldSize returns the pixel edge of the whole world at zoom z.
func WorldSize(z float64) float64 {
	return TileSize * math.Exp2(z)
}

// ProjectMercator converts WGS84 lon/lat to world pixel coordinates at zoom z,
// origin top-left.
func ProjectMercator(lon, lat, z float64) (x, y float64) {
	size := WorldSize(z)
	x = (lon + 180.0) / 360.0 * size

	latRad := ClampLat(lat) * math.Pi / 180.0
	mercatorY := math.Log(math.Tan(math.Pi/4 + latRad/2))
	y = (1 - mercatorY/math.Pi) / 2 * size

	return x, y
}

// UnprojectMercator converts world pixel coordinates at zoom z back to lon/lat.
func UnprojectMercator(x, y, z float64) (lon, lat float64) {
	size := WorldSize(z)
	lon = x/size*360.0 - 180.0

	// y: [0..size] -> mercatorY: [PI..-PI]
	mercatorY := math.Pi * (1 - 2*y/size)
	latRad := (2.0 * math.Atan(math.Exp(mercatorY))) - (math.Pi * 0.5)
	lat = ClampLat(latRad * (180.0 / math.Pi))

	return lon, lat
}

// FitZoom returns the largest zoom (capped at maxZoom) at which bbox fits
// inside a width x height pixel viewport.
func FitZoom(b BBox, width, height int, maxZoom float64) float64 {
	x0, y0 := ProjectMercator(b.West, b.North, 0)
	x1, y1 := ProjectMercator(b.East, b.South, 0)
	dx := math.Abs(x1 - x0)
	dy := math.Abs(y1 - y0)
	if dx == 0 && dy == 0 {
		return maxZoom
	}

	z := maxZoom
	if dx > 0 {
		z = math.Min(z, math.Log2(float64(width)/dx))
	}
	if dy > 0 {
		z = math.Min(z, math.Log2(float64(height)/dy))
	}
	return math.Max(0, z)
}
