package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// SVGMime is the media type of SVG output.
const SVGMime = "image/svg+xml"

// SVG writes the scene as a minified SVG document.
func SVG(s *Scene, title string) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		s.View.Width, s.View.Height, s.View.Width, s.View.Height)
	if title != "" {
		b.WriteString("<title>")
		writeEscaped(&b, title)
		b.WriteString("</title>")
	}

	for _, sh := range s.Shapes {
		switch sh.Kind {
		case ShapeFill:
			fmt.Fprintf(&b, `<path d="%s" fill="%s" fill-opacity="%s" fill-rule="evenodd" stroke="none"/>`,
				pathData(sh.Paths, true), Hex(sh.Color), num(sh.Opacity))
		case ShapeStroke:
			fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="%s" stroke-linejoin="round" stroke-linecap="round"/>`,
				pathData(sh.Paths, false), Hex(sh.Color), num(sh.Width))
		case ShapeMarker:
			c := sh.Paths[0][0]
			fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="%s" fill="%s" fill-opacity="0.8" stroke="#ffffff" stroke-width="1"/>`,
				num(c.X), num(c.Y), num(sh.Width), Hex(sh.Color))
		}
	}
	b.WriteString("</svg>")

	m := minify.New()
	m.AddFunc(SVGMime, svg.Minify)
	out, err := m.Bytes(SVGMime, b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return out, nil
}

func pathData(paths [][]Pt, closed bool) string {
	var b bytes.Buffer
	for _, p := range paths {
		for i, pt := range p {
			if i == 0 {
				b.WriteByte('M')
			} else {
				b.WriteByte('L')
			}
			b.WriteString(num(pt.X))
			b.WriteByte(' ')
			b.WriteString(num(pt.Y))
		}
		if closed {
			b.WriteByte('Z')
		}
	}
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeEscaped(b *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
}
