package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

const markerSides = 16

// Rasterize paints the scene onto dst with anti-aliasing. Shapes are drawn over
// whatever dst already holds, so a basemap may be composited first.
func Rasterize(dst draw.Image, s *Scene) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	for _, sh := range s.Shapes {
		z.Reset(b.Dx(), b.Dy())
		z.DrawOp = draw.Over

		switch sh.Kind {
		case ShapeFill:
			fillRings(z, sh.Paths)
		case ShapeStroke:
			for _, p := range sh.Paths {
				strokePath(z, p, sh.Width)
			}
		case ShapeMarker:
			c := sh.Paths[0][0]
			// white halo under the marker
			circle(z, c, sh.Width+1)
			z.Draw(dst, b, image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}), image.Point{})
			z.Reset(b.Dx(), b.Dy())
			z.DrawOp = draw.Over
			circle(z, c, sh.Width)
		}

		col := sh.Color
		col.A = uint8(math.Round(clamp01(sh.Opacity) * 255))
		z.Draw(dst, b, image.NewUniform(col), image.Point{})
	}
}

// fillRings adds the outer ring and holes with opposite windings so holes cancel.
func fillRings(z *vector.Rasterizer, rings [][]Pt) {
	outer := signedArea(rings[0]) >= 0
	polygon(z, rings[0], false)
	for _, r := range rings[1:] {
		polygon(z, r, (signedArea(r) >= 0) == outer)
	}
}

func polygon(z *vector.Rasterizer, pts []Pt, reverse bool) {
	n := len(pts)
	at := func(i int) Pt {
		if reverse {
			return pts[n-1-i]
		}
		return pts[i]
	}
	p := at(0)
	z.MoveTo(float32(p.X), float32(p.Y))
	for i := 1; i < n; i++ {
		p = at(i)
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// strokePath approximates a round-joined stroke with one quad per segment and
// a disc per vertex, all wound the same way so overlaps never cancel.
func strokePath(z *vector.Rasterizer, pts []Pt, width float64) {
	half := math.Max(width, 1) / 2
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		quad := []Pt{{a.X + nx, a.Y + ny}, {b.X + nx, b.Y + ny}, {b.X - nx, b.Y - ny}, {a.X - nx, a.Y - ny}}
		polygon(z, quad, signedArea(quad) < 0)
	}
	for _, p := range pts {
		circle(z, p, half)
	}
}

func circle(z *vector.Rasterizer, c Pt, r float64) {
	pts := make([]Pt, markerSides)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / markerSides
		pts[i] = Pt{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	polygon(z, pts, signedArea(pts) < 0)
}

// signedArea is positive for counter-clockwise rings in a y-up frame.
func signedArea(pts []Pt) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
