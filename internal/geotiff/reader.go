package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Info holds the first image directory of a TIFF file.
type Info struct {
	GeoKeys         map[int]any
	ByteOrder       binary.ByteOrder
	Description     string
	NoData          string
	BitsPerSample   []int
	SampleFormat    []int
	StripOffsets    []int64
	StripByteCounts []int64
	PixelScale      []float64
	Tiepoints       []float64
	Width           int
	Height          int
	SamplesPerPixel int
	RowsPerStrip    int
	Compression     Compression
	Photometric     int
	Predictor       int
	PlanarConfig    int
	Tiled           bool
}

// EPSG returns the CRS code declared by the geo keys, or 0.
func (i *Info) EPSG() int {
	for _, key := range []int{KeyProjectedCSType, KeyGeographicType} {
		if v, ok := i.GeoKeys[key].(int); ok && v > 0 && v != 32767 {
			return v
		}
	}
	return 0
}

// Geographic reports whether the raster is georeferenced in lon/lat degrees.
func (i *Info) Geographic() bool {
	if mt, ok := i.GeoKeys[KeyGTModelType].(int); ok {
		return mt == modelTypeGeographic
	}
	_, projected := i.GeoKeys[KeyProjectedCSType]
	_, geographic := i.GeoKeys[KeyGeographicType]
	return geographic && !projected
}

// Origin returns the model coordinate of the top-left pixel corner.
func (i *Info) Origin() (x, y float64, ok bool) {
	if len(i.Tiepoints) < 6 || len(i.PixelScale) < 2 {
		return 0, 0, false
	}
	x = i.Tiepoints[3] - i.Tiepoints[0]*i.PixelScale[0]
	y = i.Tiepoints[4] + i.Tiepoints[1]*i.PixelScale[1]
	return x, y, true
}

// Bounds returns west, south, east, north in model units.
func (i *Info) Bounds() (west, south, east, north float64, ok bool) {
	x, y, ok := i.Origin()
	if !ok {
		return 0, 0, 0, 0, false
	}
	return x, y - float64(i.Height)*i.PixelScale[1], x + float64(i.Width)*i.PixelScale[0], y, true
}

// Sample reports the first sample's format: 1 unsigned, 2 signed, 3 float.
func (i *Info) Sample() int {
	if len(i.SampleFormat) == 0 {
		return 1
	}
	return i.SampleFormat[0]
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// ReadInfo parses the TIFF header and first image file directory.
func ReadInfo(data []byte) (*Info, error) {
	if len(data) < 8 {
		return nil, errors.New("tiff: file too short")
	}
	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, errors.New("tiff: invalid byte order mark")
	}
	switch bo.Uint16(data[2:4]) {
	case 42:
	case 43:
		return nil, errors.New("tiff: BigTIFF is not supported")
	default:
		return nil, errors.New("tiff: invalid magic number")
	}

	off := int64(bo.Uint32(data[4:8]))
	if off+2 > int64(len(data)) {
		return nil, errors.New("tiff: IFD offset out of range")
	}
	n := int64(bo.Uint16(data[off : off+2]))
	if off+2+n*12 > int64(len(data)) {
		return nil, errors.New("tiff: IFD truncated")
	}

	entries := make(map[uint16]entry, n)
	for k := int64(0); k < n; k++ {
		p := off + 2 + k*12
		e := entry{
			tag:   bo.Uint16(data[p : p+2]),
			typ:   bo.Uint16(data[p+2 : p+4]),
			count: bo.Uint32(data[p+4 : p+8]),
		}
		size, ok := typeSizes[e.typ]
		if !ok {
			continue
		}
		total := int64(size) * int64(e.count)
		if total <= 4 {
			e.data = data[p+8 : p+8+total]
		} else {
			vo := int64(bo.Uint32(data[p+8 : p+12]))
			if vo < 0 || vo+total > int64(len(data)) {
				return nil, fmt.Errorf("tiff: tag %d value out of range", e.tag)
			}
			e.data = data[vo : vo+total]
		}
		entries[e.tag] = e
	}

	info := &Info{
		ByteOrder:       bo,
		Compression:     CompressionNone,
		PlanarConfig:    1,
		Predictor:       1,
		SamplesPerPixel: 1,
	}
	uint1 := func(tag uint16, def int) int {
		if v := uints(bo, entries[tag]); len(v) > 0 {
			return int(v[0])
		}
		return def
	}

	info.Width = uint1(tagImageWidth, 0)
	info.Height = uint1(tagImageLength, 0)
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.New("tiff: missing image dimensions")
	}
	info.SamplesPerPixel = uint1(tagSamplesPerPixel, 1)
	info.Compression = Compression(uint1(tagCompression, int(CompressionNone)))
	info.Photometric = uint1(tagPhotometric, 1)
	info.Predictor = uint1(tagPredictor, 1)
	info.PlanarConfig = uint1(tagPlanarConfig, 1)
	info.RowsPerStrip = uint1(tagRowsPerStrip, info.Height)
	_, info.Tiled = entries[tagTileOffsets]

	for _, v := range uints(bo, entries[tagBitsPerSample]) {
		info.BitsPerSample = append(info.BitsPerSample, int(v))
	}
	if len(info.BitsPerSample) == 0 {
		info.BitsPerSample = []int{1}
	}
	for _, v := range uints(bo, entries[tagSampleFormat]) {
		info.SampleFormat = append(info.SampleFormat, int(v))
	}
	for _, v := range uints(bo, entries[tagStripOffsets]) {
		info.StripOffsets = append(info.StripOffsets, int64(v))
	}
	for _, v := range uints(bo, entries[tagStripByteCounts]) {
		info.StripByteCounts = append(info.StripByteCounts, int64(v))
	}
	info.PixelScale = floats(bo, entries[tagModelPixelScale])
	info.Tiepoints = floats(bo, entries[tagModelTiepoint])
	info.Description = ascii(entries[tagImageDescription])
	info.NoData = ascii(entries[tagGDALNoData])
	info.GeoKeys = geoKeys(
		uints(bo, entries[tagGeoKeyDirectory]),
		floats(bo, entries[tagGeoDoubleParams]),
		ascii(entries[tagGeoASCIIParams]),
	)

	return info, nil
}

func uints(bo binary.ByteOrder, e entry) []uint64 {
	var out []uint64
	switch e.typ {
	case dtByte, dtUndefined:
		for _, b := range e.data {
			out = append(out, uint64(b))
		}
	case dtShort:
		for i := 0; i+2 <= len(e.data); i += 2 {
			out = append(out, uint64(bo.Uint16(e.data[i:])))
		}
	case dtLong:
		for i := 0; i+4 <= len(e.data); i += 4 {
			out = append(out, uint64(bo.Uint32(e.data[i:])))
		}
	}
	return out
}

func floats(bo binary.ByteOrder, e entry) []float64 {
	var out []float64
	switch e.typ {
	case dtDouble:
		for i := 0; i+8 <= len(e.data); i += 8 {
			out = append(out, math.Float64frombits(bo.Uint64(e.data[i:])))
		}
	case dtFloat:
		for i := 0; i+4 <= len(e.data); i += 4 {
			out = append(out, float64(math.Float32frombits(bo.Uint32(e.data[i:]))))
		}
	default:
		for _, v := range uints(bo, e) {
			out = append(out, float64(v))
		}
	}
	return out
}

func ascii(e entry) string {
	if e.typ != dtASCII {
		return ""
	}
	return strings.TrimRight(string(e.data), "\x00")
}

// geoKeys decodes a GeoKeyDirectory into key id to int, float64, []float64 or string.
func geoKeys(dir []uint64, doubles []float64, asciiParams string) map[int]any {
	keys := make(map[int]any)
	if len(dir) < 4 {
		return keys
	}
	n := int(dir[3])
	for k := 0; k < n && 4+k*4+3 < len(dir); k++ {
		id := int(dir[4+k*4])
		loc := dir[4+k*4+1]
		count := int(dir[4+k*4+2])
		val := int(dir[4+k*4+3])

		switch loc {
		case 0:
			keys[id] = val
		case tagGeoDoubleParams:
			if val+count <= len(doubles) {
				if count == 1 {
					keys[id] = doubles[val]
				} else {
					keys[id] = append([]float64(nil), doubles[val:val+count]...)
				}
			}
		case tagGeoASCIIParams:
			if val+count <= len(asciiParams) {
				keys[id] = strings.TrimRight(asciiParams[val:val+count], "|\x00")
			}
		}
	}
	return keys
}
