// Package dataset models uploaded datasets, groups raw files into them
// and keeps the workspace registry keyed by dataset UID.
package dataset

import (
	"fmt"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/google/uuid"
)

// Dataset is the user-visible handle for one logical upload.
type Dataset struct {
	UID         string         `json:"uid"`
	Label       string         `json:"label"`
	Kind        geo.SourceKind `json:"kind"`
	Files       []Source       `json:"-"`
	Previewable bool           `json:"previewable"`
	Visible     bool           `json:"visible"`
}

// New creates a dataset with a fresh UID.
func New(label string, kind geo.SourceKind, files ...Source) *Dataset {
	return &Dataset{
		UID:         uuid.NewString(),
		Label:       label,
		Kind:        kind,
		Files:       files,
		Previewable: kind != geo.SourceUnknown,
		Visible:     true,
	}
}

// FileNames lists the names of the dataset's files.
func (d *Dataset) FileNames() []string {
	names := make([]string, len(d.Files))
	for i, f := range d.Files {
		names[i] = f.Name()
	}
	return names
}

// File returns the first file with extension ext.
func (d *Dataset) File(ext string) (Source, bool) {
	for _, f := range d.Files {
		if Ext(f.Name()) == ext {
			return f, true
		}
	}
	return nil, false
}

// Bytes reads the single source of a one-file dataset.
func (d *Dataset) Bytes() ([]byte, error) {
	if len(d.Files) == 0 {
		return nil, geo.Errorf(geo.KindInputShape, "dataset %s has no files", d.Label)
	}
	data, err := d.Files[0].Bytes()
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, fmt.Sprintf("read %s", d.Files[0].Name()))
	}
	return data, nil
}
