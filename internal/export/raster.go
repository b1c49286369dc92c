package export

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"time"

	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/geotiff"
	"github.com/woozymasta/geoconv/internal/render"
)

// fitPadding keeps automatically fitted features off the image edge, in pixels.
const fitPadding = 16

// view selects the viewport for a raster export of the request's collection.
func (r *request) view() (render.View, error) {
	b := r.fc.Metadata.BBox
	if b == nil {
		b = geo.ComputeBBox(r.fc.Features)
	}
	if b == nil {
		return render.View{}, geo.Errorf(geo.KindInputShape, "%s export needs at least one feature", r.cfg.Format)
	}

	w, h := r.cfg.RasterWidth, r.cfg.RasterHeight
	zoom := r.cfg.RasterZoom
	if zoom <= 0 {
		zoom = geo.FitZoom(*b, max(1, w-2*fitPadding), max(1, h-2*fitPadding), render.MaxZoom)
	}
	if r.cfg.Basemap {
		// tiles exist at integer zooms only
		zoom = math.Floor(zoom)
	}
	return render.NewView(*b, w, h, zoom), nil
}

// canvas renders the collection, over the basemap when requested.
func (e *Exporter) canvas(r *request) (*image.RGBA, render.View, bool, error) {
	v, err := r.view()
	if err != nil {
		return nil, v, false, err
	}
	img := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))

	opaque := false
	if r.cfg.Basemap {
		if e.Basemap == nil {
			r.warn("basemap requested but no tile source is configured")
		} else {
			timeout := time.Duration(r.cfg.RasterTileTimeoutMS) * time.Millisecond
			failed, err := e.Basemap.Composite(r.ctx, img, v, r.cfg.RasterConcurrency, timeout)
			if err != nil {
				return nil, v, false, err
			}
			for _, t := range failed {
				r.warn("basemap tile %s failed", t)
			}
			// Failed tiles leave transparent holes that need the alpha channel.
			opaque = len(failed) == 0
		}
	}

	scene := render.Build(v, render.Layer{Collection: r.fc, Style: r.style})
	if scene.Clipped > 0 {
		r.warn("%d feature(s) outside the Web Mercator latitude band clipped", scene.Clipped)
	}
	render.Rasterize(img, scene)

	if err := r.ctx.Err(); err != nil {
		return nil, v, false, geo.WrapError(geo.KindCanceled, err, "render canceled")
	}
	return img, v, opaque, nil
}

func encodePNG(e *Exporter, r *request) ([]byte, error) {
	img, _, _, err := e.canvas(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "encode PNG")
	}
	return buf.Bytes(), nil
}

func encodeSVG(_ *Exporter, r *request) ([]byte, error) {
	v, err := r.view()
	if err != nil {
		return nil, err
	}
	scene := render.Build(v, render.Layer{Collection: r.fc, Style: r.style})
	if scene.Clipped > 0 {
		r.warn("%d feature(s) outside the Web Mercator latitude band clipped", scene.Clipped)
	}
	return render.SVG(scene, r.fc.Metadata.Label)
}

func encodeGeoTIFF(e *Exporter, r *request) ([]byte, error) {
	img, v, opaque, err := e.canvas(r)
	if err != nil {
		return nil, err
	}

	opts := geotiff.Options{
		Description:   r.fc.Metadata.Label,
		Compression:   geotiff.ParseCompression(r.cfg.TIFFCompression),
		BitsPerSample: r.cfg.TIFFBits,
		Alpha:         !opaque,
		EPSG:          4326,
	}
	if r.cfg.CRS == CRSWebMercator {
		opts.EPSG = 3857
		opts.Bounds = v.MercatorBounds()
	} else {
		b := v.Bounds()
		opts.Bounds = [4]float64{b.West, b.South, b.East, b.North}
	}

	var buf bytes.Buffer
	if err := geotiff.Encode(&buf, img, opts); err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "encode GeoTIFF")
	}
	return buf.Bytes(), nil
}
