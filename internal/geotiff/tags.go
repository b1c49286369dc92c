// Package geotiff reads GeoTIFF georeferencing tags and writes GeoTIFF images.
package geotiff

// TIFF tags used by the reader and writer.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagPredictor        = 317
	tagTileOffsets      = 324
	tagExtraSamples     = 338
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
	tagGeoDoubleParams  = 34736
	tagGeoASCIIParams   = 34737
	tagGDALNoData       = 42113
)

// TIFF field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeSizes = map[uint16]uint32{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8,
}

// Compression schemes.
type Compression uint16

const (
	CompressionNone    Compression = 1
	CompressionLZW     Compression = 5
	CompressionDeflate Compression = 8
	compressionAdobe   Compression = 32946
)

// ParseCompression maps a config name to a scheme; unknown names fall back to none.
func ParseCompression(name string) Compression {
	switch name {
	case "lzw", "LZW":
		return CompressionLZW
	case "deflate", "DEFLATE", "zip":
		return CompressionDeflate
	}
	return CompressionNone
}

// String returns the config name of c.
func (c Compression) String() string {
	switch c {
	case CompressionLZW:
		return "lzw"
	case CompressionDeflate, compressionAdobe:
		return "deflate"
	case CompressionNone:
		return "none"
	}
	return "unknown"
}

// GeoKey identifiers.
const (
	KeyGTModelType      = 1024
	KeyGTRasterType     = 1025
	KeyGeographicType   = 2048
	KeyProjectedCSType  = 3072
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterPixelIsArea   = 1
)
