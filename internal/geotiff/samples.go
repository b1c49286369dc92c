package geotiff

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/image/tiff/lzw"
)

// ReadSamples decodes a stripped single-band raster into row-major float64 values.
// It covers the integer and floating point layouts the image decoder rejects.
func ReadSamples(data []byte, info *Info) ([]float64, error) {
	if info.SamplesPerPixel != 1 {
		return nil, fmt.Errorf("tiff: %d samples per pixel not supported", info.SamplesPerPixel)
	}
	if info.Tiled {
		return nil, errors.New("tiff: tiled layout not supported")
	}
	if info.Predictor != 1 {
		return nil, fmt.Errorf("tiff: predictor %d not supported", info.Predictor)
	}
	if len(info.StripOffsets) == 0 || len(info.StripOffsets) != len(info.StripByteCounts) {
		return nil, errors.New("tiff: missing strip offsets")
	}

	bits := info.BitsPerSample[0]
	if bits%8 != 0 || bits == 0 || bits > 64 {
		return nil, fmt.Errorf("tiff: %d bits per sample not supported", bits)
	}
	width := bits / 8
	want := info.Width * info.Height * width

	raw := make([]byte, 0, want)
	for i, off := range info.StripOffsets {
		end := off + info.StripByteCounts[i]
		if off < 0 || end > int64(len(data)) {
			return nil, errors.New("tiff: strip out of range")
		}
		strip, err := decompress(info.Compression, data[off:end])
		if err != nil {
			return nil, err
		}
		raw = append(raw, strip...)
	}
	if len(raw) < want {
		return nil, fmt.Errorf("tiff: pixel data truncated (%d of %d bytes)", len(raw), want)
	}

	bo := info.ByteOrder
	format := info.Sample()
	out := make([]float64, info.Width*info.Height)
	for i := range out {
		b := raw[i*width : (i+1)*width]
		switch {
		case format == 3 && bits == 32:
			out[i] = float64(math.Float32frombits(bo.Uint32(b)))
		case format == 3 && bits == 64:
			out[i] = math.Float64frombits(bo.Uint64(b))
		case format == 2 && bits == 8:
			out[i] = float64(int8(b[0]))
		case format == 2 && bits == 16:
			out[i] = float64(int16(bo.Uint16(b)))
		case format == 2 && bits == 32:
			out[i] = float64(int32(bo.Uint32(b)))
		case bits == 8:
			out[i] = float64(b[0])
		case bits == 16:
			out[i] = float64(bo.Uint16(b))
		case bits == 32:
			out[i] = float64(bo.Uint32(b))
		default:
			return nil, fmt.Errorf("tiff: sample format %d with %d bits not supported", format, bits)
		}
	}
	return out, nil
}

func decompress(c Compression, strip []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return strip, nil
	case CompressionLZW:
		r := lzw.NewReader(bytes.NewReader(strip), lzw.MSB, 8)
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case CompressionDeflate, compressionAdobe:
		r, err := zlib.NewReader(bytes.NewReader(strip))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	}
	return nil, fmt.Errorf("tiff: compression %d not supported", c)
}
