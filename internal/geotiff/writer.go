package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// Options control GeoTIFF encoding.
type Options struct {
	Description   string
	Bounds        [4]float64 // west, south, east, north in CRS units
	Compression   Compression
	BitsPerSample int
	EPSG          int
	Alpha         bool
}

// Encode writes img as a single-strip chunky RGB(A) GeoTIFF.
func Encode(w io.Writer, img image.Image, opts Options) error {
	if opts.BitsPerSample == 0 {
		opts.BitsPerSample = 8
	}
	if opts.BitsPerSample != 8 && opts.BitsPerSample != 16 {
		return fmt.Errorf("geotiff: %d bits per sample not supported", opts.BitsPerSample)
	}
	if opts.EPSG == 0 {
		opts.EPSG = 4326
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionNone
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return errors.New("geotiff: empty image")
	}

	pixels, spp := Interleave(img, opts.BitsPerSample, opts.Alpha)
	strip, err := compress(opts.Compression, pixels)
	if err != nil {
		return err
	}

	width, height := b.Dx(), b.Dy()
	west, south, east, north := opts.Bounds[0], opts.Bounds[1], opts.Bounds[2], opts.Bounds[3]
	scale := []float64{(east - west) / float64(width), (north - south) / float64(height), 0}
	tiepoint := []float64{0, 0, 0, west, north, 0}

	bits := make([]uint16, spp)
	formats := make([]uint16, spp)
	for i := range bits {
		bits[i] = uint16(opts.BitsPerSample)
		formats[i] = 1
	}

	ifd := []ifdField{
		longField(tagImageWidth, uint32(width)),
		longField(tagImageLength, uint32(height)),
		shortField(tagBitsPerSample, bits...),
		shortField(tagCompression, uint16(opts.Compression)),
		shortField(tagPhotometric, 2),
		longField(tagStripOffsets, 8),
		shortField(tagSamplesPerPixel, uint16(spp)),
		longField(tagRowsPerStrip, uint32(height)),
		longField(tagStripByteCounts, uint32(len(strip))),
		shortField(tagPlanarConfig, 1),
		shortField(tagSampleFormat, formats...),
		doubleField(tagModelPixelScale, scale...),
		doubleField(tagModelTiepoint, tiepoint...),
		shortField(tagGeoKeyDirectory, geoKeyDirectory(opts.EPSG)...),
	}
	if opts.Description != "" {
		ifd = append(ifd, asciiField(tagImageDescription, opts.Description))
	}
	if opts.Alpha {
		ifd = append(ifd, shortField(tagExtraSamples, 2))
	}

	return writeTIFF(w, strip, ifd)
}

// Interleave converts img to chunky RGB(A) samples, little-endian for 16 bits.
// 8-bit values are widened to 16 bits by multiplying by 257.
func Interleave(img image.Image, bits int, alpha bool) ([]byte, int) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	spp := 3
	if alpha {
		spp = 4
	}
	bytesPer := bits / 8
	out := make([]byte, 0, b.Dx()*b.Dy()*spp*bytesPer)
	nb := nrgba.Bounds()
	for y := nb.Min.Y; y < nb.Max.Y; y++ {
		row := nrgba.Pix[(y-nb.Min.Y)*nrgba.Stride:]
		for x := 0; x < nb.Dx(); x++ {
			px := row[x*4 : x*4+4]
			for s := 0; s < spp; s++ {
				if bytesPer == 2 {
					out = binary.LittleEndian.AppendUint16(out, uint16(px[s])*257)
				} else {
					out = append(out, px[s])
				}
			}
		}
	}
	return out, spp
}

func compress(c Compression, pixels []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return pixels, nil
	case CompressionLZW:
		return lzwEncode(pixels), nil
	case CompressionDeflate:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(pixels); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("geotiff: compression %d not supported", c)
}

// geoKeyDirectory declares a geographic or projected EPSG CRS with PixelIsArea.
func geoKeyDirectory(epsg int) []uint16 {
	model, crsKey := uint16(modelTypeGeographic), uint16(KeyGeographicType)
	if epsg != 4326 && epsg != 4269 && epsg != 4258 {
		model, crsKey = modelTypeProjected, KeyProjectedCSType
	}
	return []uint16{
		1, 1, 0, 3,
		KeyGTModelType, 0, 1, model,
		KeyGTRasterType, 0, 1, rasterPixelIsArea,
		crsKey, 0, 1, uint16(epsg),
	}
}

type ifdField struct {
	data  []byte
	tag   uint16
	typ   uint16
	count uint32
}

func shortField(tag uint16, v ...uint16) ifdField {
	data := make([]byte, 0, 2*len(v))
	for _, x := range v {
		data = binary.LittleEndian.AppendUint16(data, x)
	}
	return ifdField{tag: tag, typ: dtShort, count: uint32(len(v)), data: data}
}

func longField(tag uint16, v ...uint32) ifdField {
	data := make([]byte, 0, 4*len(v))
	for _, x := range v {
		data = binary.LittleEndian.AppendUint32(data, x)
	}
	return ifdField{tag: tag, typ: dtLong, count: uint32(len(v)), data: data}
}

func doubleField(tag uint16, v ...float64) ifdField {
	data := make([]byte, 0, 8*len(v))
	for _, x := range v {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(x))
	}
	return ifdField{tag: tag, typ: dtDouble, count: uint32(len(v)), data: data}
}

func asciiField(tag uint16, s string) ifdField {
	data := append([]byte(s), 0)
	return ifdField{tag: tag, typ: dtASCII, count: uint32(len(data)), data: data}
}

// writeTIFF lays out header, strip data, the IFD and out-of-line values.
func writeTIFF(w io.Writer, strip []byte, fields []ifdField) error {
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	ifdOffset := 8 + len(strip)
	if ifdOffset%2 == 1 {
		ifdOffset++
	}
	ifdSize := 2 + 12*len(fields) + 4
	extraOffset := ifdOffset + ifdSize

	var header, ifd, extra bytes.Buffer
	header.WriteString("II")
	_ = binary.Write(&header, binary.LittleEndian, uint16(42))
	_ = binary.Write(&header, binary.LittleEndian, uint32(ifdOffset))

	_ = binary.Write(&ifd, binary.LittleEndian, uint16(len(fields)))
	for _, f := range fields {
		_ = binary.Write(&ifd, binary.LittleEndian, f.tag)
		_ = binary.Write(&ifd, binary.LittleEndian, f.typ)
		_ = binary.Write(&ifd, binary.LittleEndian, f.count)
		if len(f.data) <= 4 {
			var inline [4]byte
			copy(inline[:], f.data)
			ifd.Write(inline[:])
			continue
		}
		_ = binary.Write(&ifd, binary.LittleEndian, uint32(extraOffset+extra.Len()))
		extra.Write(f.data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	_ = binary.Write(&ifd, binary.LittleEndian, uint32(0))

	for _, chunk := range [][]byte{header.Bytes(), strip} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	if len(strip)%2 == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	if _, err := w.Write(ifd.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(extra.Bytes())
	return err
}
