package ingest

import (
	"bytes"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

// cfbMagic opens a Compound File Binary container: a legacy BIFF .xls
// workbook or a password-protected .xlsx.
var cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ParseExcel reads one sheet of a workbook, the first unless sheet is set,
// and applies the same coordinate detection as CSV.
func ParseExcel(label string, data []byte, sheet string) (*geo.FeatureCollection, error) {
	if bytes.HasPrefix(data, cfbMagic) {
		return nil, compoundWorkbookError(data)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "open workbook")
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, geo.Errorf(geo.KindInputShape, "workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !contains(sheets, sheet) {
		return nil, geo.Errorf(geo.KindInputShape, "sheet %q not found", sheet)
	}

	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "read sheet "+sheet)
	}

	fc := geo.NewFeatureCollection(label, geo.SourceExcel)
	fc.Metadata.Sheet = sheet
	fc.Metadata.Layers = sheets

	// header is the first non-empty row
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		fc.Metadata.Warn("sheet %q is empty", sheet)
		return fc, nil
	}

	var body [][]string
	for _, row := range rows[start+1:] {
		if !blankRow(row) {
			body = append(body, row)
		}
	}
	buildTable(fc, rows[start], body)
	return fc, nil
}

func parseExcelDataset(d *dataset.Dataset, opts Options) (*geo.FeatureCollection, *geo.Raster, error) {
	data, err := d.Bytes()
	if err != nil {
		return nil, nil, err
	}
	fc, err := ParseExcel(d.Label, data, opts.Sheet)
	return fc, nil, err
}

// compoundWorkbookError names why a CFB workbook cannot be read; only OOXML
// workbooks are decoded.
func compoundWorkbookError(data []byte) error {
	if doc, err := mscfb.New(bytes.NewReader(data)); err == nil {
		for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
			if entry.Name == "EncryptedPackage" {
				return geo.Errorf(geo.KindUnsupported, "workbook is password protected; save an unprotected .xlsx copy")
			}
		}
	}
	return geo.Errorf(geo.KindUnsupported, "legacy .xls (BIFF) workbooks are not supported; save as .xlsx")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
