package export

import (
	"strings"
	"unicode"
)

// MaxStemLength is the longest sanitized stem, in runes.
const MaxStemLength = 120

// typedExtensions are stripped from the end of a stem.
var typedExtensions = []string{
	".geojson", ".json", ".csv", ".kml", ".kmz", ".gpx", ".zip", ".shp",
	".tif", ".tiff", ".png", ".svg", ".xlsx", ".xls",
}

// Sanitize turns a dataset label into a safe file stem: reserved characters
// are removed, whitespace runs become one underscore, typed extensions are
// stripped and the result is cut to MaxStemLength runes. Sanitize is idempotent.
func Sanitize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r), unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space {
			b.WriteByte('_')
			space = false
		}
		b.WriteRune(r)
	}

	out := b.String()
	if runes := []rune(out); len(runes) > MaxStemLength {
		out = string(runes[:MaxStemLength])
	}
	for {
		trimmed := strings.Trim(out, "._")
		for _, ext := range typedExtensions {
			if n := len(trimmed) - len(ext); n >= 0 && strings.EqualFold(trimmed[n:], ext) {
				trimmed = trimmed[:n]
				break
			}
		}
		if trimmed == out {
			break
		}
		out = trimmed
	}

	if out == "" {
		return "dataset"
	}
	return out
}

// Filename composes "<prefix><sanitized stem>.<ext>".
func Filename(prefix, stem string, f Format) string {
	return prefix + Sanitize(stem) + "." + f.Ext()
}
