package ingest

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"strconv"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/geotiff"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

const (
	// PreviewMax is the largest preview edge in pixels.
	PreviewMax = 512

	// MaxPixels caps width*height of a GeoTIFF accepted for decoding.
	MaxPixels = 100_000_000
)

// ParseGeoTIFF decodes the first image of a GeoTIFF into a Raster with a PNG preview.
func ParseGeoTIFF(label string, data []byte) (*geo.Raster, error) {
	info, err := geotiff.ReadInfo(data)
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "read GeoTIFF")
	}
	if pixels := int64(info.Width) * int64(info.Height); pixels > MaxPixels {
		return nil, geo.Errorf(geo.KindInputShape, "GeoTIFF is %dx%d (%d pixels), limit is %d",
			info.Width, info.Height, pixels, MaxPixels)
	}

	r := &geo.Raster{
		Label:           label,
		SourceKind:      geo.SourceGeoTIFF,
		Width:           info.Width,
		Height:          info.Height,
		SamplesPerPixel: info.SamplesPerPixel,
		BitsPerSample:   info.BitsPerSample,
		SampleFormat:    info.Sample(),
		PixelScale:      info.PixelScale,
		Tiepoints:       info.Tiepoints,
		GeoKeys:         info.GeoKeys,
		EPSG:            info.EPSG(),
		Original:        data,
	}
	if x, y, ok := info.Origin(); ok {
		r.Origin = [2]float64{x, y}
		if w, s, e, n, ok := info.Bounds(); ok && info.Geographic() &&
			geo.ValidCoordinate(w, s) && geo.ValidCoordinate(e, n) {
			r.BBox = &geo.BBox{West: w, South: s, East: e, North: n}
		}
	} else {
		r.Warnings = append(r.Warnings, "raster has no ModelTiepoint/ModelPixelScale georeference")
	}

	src, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("label", label).Msg("TIFF decoder failed, reading raw samples")
		src, err = grayFromSamples(data, info)
		if err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "decode GeoTIFF pixels")
		}
	}

	pw, ph := min(PreviewMax, info.Width), min(PreviewMax, info.Height)
	var preview xdraw.Image
	if info.SamplesPerPixel >= 3 {
		preview = image.NewNRGBA(image.Rect(0, 0, pw, ph))
	} else {
		preview = image.NewGray(image.Rect(0, 0, pw, ph))
	}
	xdraw.CatmullRom.Scale(preview, preview.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, preview); err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "encode preview")
	}
	r.Preview = buf.Bytes()
	r.PreviewWidth, r.PreviewHeight = pw, ph

	return r, nil
}

// grayFromSamples stretches a single-band raster's min..max to 8-bit grayscale.
// NaN and the GDAL nodata value are rendered black.
func grayFromSamples(data []byte, info *geotiff.Info) (image.Image, error) {
	values, err := geotiff.ReadSamples(data, info)
	if err != nil {
		return nil, err
	}

	nodata, hasNoData := math.NaN(), false
	if info.NoData != "" {
		if v, err := strconv.ParseFloat(info.NoData, 64); err == nil {
			nodata, hasNoData = v, true
		}
	}
	skip := func(v float64) bool {
		return math.IsNaN(v) || math.IsInf(v, 0) || (hasNoData && v == nodata)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if skip(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	img := image.NewGray(image.Rect(0, 0, info.Width, info.Height))
	span := hi - lo
	for i, v := range values {
		if skip(v) {
			continue
		}
		g := uint8(255)
		if span > 0 {
			g = uint8(math.Round((v - lo) / span * 255))
		}
		img.Pix[i] = g
	}
	return img, nil
}

func parseGeoTIFFDataset(d *dataset.Dataset, _ Options) (*geo.FeatureCollection, *geo.Raster, error) {
	data, err := d.Bytes()
	if err != nil {
		return nil, nil, err
	}
	r, err := ParseGeoTIFF(d.Label, data)
	return nil, r, err
}
