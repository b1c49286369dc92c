package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/woozymasta/geoconv/internal/geo"
)

// Delimiters considered by detection, in tie-break order.
var csvDelimiters = []rune{',', '\t', '|', ';'}

// ParseCSV reads a delimited text table with a header row.
func ParseCSV(label string, data []byte) (*geo.FeatureCollection, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, geo.Errorf(geo.KindInputShape, "CSV has no header row")
	}
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "read CSV header")
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "read CSV")
		}
		if blankRow(row) {
			continue
		}
		rows = append(rows, row)
	}

	fc := geo.NewFeatureCollection(label, geo.SourceCSV)
	buildTable(fc, headers, rows)
	return fc, nil
}

// detectDelimiter picks the candidate occurring most often, outside quotes, in the first line.
func detectDelimiter(data []byte) rune {
	counts := make(map[rune]int, len(csvDelimiters))
	inQuotes := false
	for _, r := range string(firstLine(data)) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes:
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range csvDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return data[:i]
	}
	return data
}

func blankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
