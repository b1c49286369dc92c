package dataset

import (
	"fmt"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/rs/zerolog/log"
)

// Parser turns a dataset's source bytes into the normal form.
// Exactly one of the returned collection or raster is non-nil on success.
type Parser interface {
	Parse(d *Dataset) (*geo.FeatureCollection, *geo.Raster, error)
}

// Workspace is the registry joining datasets, parsed collections, rasters and styles by UID.
// It has a single writer; callers serialize writes and read through Snapshot.
type Workspace struct {
	parser      Parser
	datasets    map[string]*Dataset
	collections map[string]*geo.FeatureCollection
	rasters     map[string]*geo.Raster
	styles      map[string]Style
	order       []string
}

// NewWorkspace returns an empty workspace using parser for lazy parsing.
func NewWorkspace(parser Parser) *Workspace {
	return &Workspace{
		parser:      parser,
		datasets:    make(map[string]*Dataset),
		collections: make(map[string]*geo.FeatureCollection),
		rasters:     make(map[string]*geo.Raster),
		styles:      make(map[string]Style),
	}
}

// Add registers datasets with the default style. A dataset whose UID is already present is ignored.
func (w *Workspace) Add(ds ...*Dataset) {
	for _, d := range ds {
		if _, exists := w.datasets[d.UID]; exists {
			continue
		}
		w.datasets[d.UID] = d
		w.styles[d.UID] = DefaultStyle()
		w.order = append(w.order, d.UID)

		log.Info().
			Str("uid", d.UID).
			Str("label", d.Label).
			Str("kind", string(d.Kind)).
			Strs("files", d.FileNames()).
			Msg("Dataset registered")
	}
}

// Ingest groups files, registers the resulting datasets and returns them with grouping warnings.
func (w *Workspace) Ingest(files []Source) ([]*Dataset, []string) {
	ds, errs := Group(files)
	w.Add(ds...)

	warnings := make([]string, 0, len(errs))
	for _, err := range errs {
		warnings = append(warnings, err.Error())
	}
	return ds, warnings
}

// Get returns the dataset with uid.
func (w *Workspace) Get(uid string) (*Dataset, bool) {
	d, ok := w.datasets[uid]
	return d, ok
}

// List returns datasets in registration order.
func (w *Workspace) List() []*Dataset {
	out := make([]*Dataset, 0, len(w.order))
	for _, uid := range w.order {
		out = append(out, w.datasets[uid])
	}
	return out
}

// Len returns the number of registered datasets.
func (w *Workspace) Len() int { return len(w.order) }

// Remove deletes the dataset and everything joined to it. It reports whether uid existed.
func (w *Workspace) Remove(uid string) bool {
	d, ok := w.datasets[uid]
	if !ok {
		return false
	}

	delete(w.datasets, uid)
	delete(w.collections, uid)
	delete(w.rasters, uid)
	delete(w.styles, uid)
	for i, id := range w.order {
		if id == uid {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}

	log.Info().Str("uid", uid).Str("label", d.Label).Msg("Dataset removed")
	return true
}

// Parse returns the parsed normal form of uid, parsing on first use.
func (w *Workspace) Parse(uid string) (*geo.FeatureCollection, *geo.Raster, error) {
	d, ok := w.datasets[uid]
	if !ok {
		return nil, nil, fmt.Errorf("dataset %s not found", uid)
	}
	if fc, ok := w.collections[uid]; ok {
		return fc, nil, nil
	}
	if r, ok := w.rasters[uid]; ok {
		return nil, r, nil
	}
	if w.parser == nil {
		return nil, nil, geo.Errorf(geo.KindUnsupported, "no parser configured")
	}

	fc, r, err := w.parser.Parse(d)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case fc != nil:
		w.collections[uid] = fc
	case r != nil:
		w.rasters[uid] = r
	}
	return fc, r, nil
}

// Collection returns the cached collection of uid without parsing.
func (w *Workspace) Collection(uid string) (*geo.FeatureCollection, bool) {
	fc, ok := w.collections[uid]
	return fc, ok
}

// Style returns the style of uid.
func (w *Workspace) Style(uid string) (Style, bool) {
	s, ok := w.styles[uid]
	return s, ok
}

// SetStyle replaces the style of uid.
func (w *Workspace) SetStyle(uid string, s Style) error {
	if _, ok := w.datasets[uid]; !ok {
		return fmt.Errorf("dataset %s not found", uid)
	}
	if s.Symbology != nil {
		if err := s.Symbology.Validate(); err != nil {
			return err
		}
	}
	w.styles[uid] = s
	return nil
}

// SetVisible toggles the visibility flag of uid.
func (w *Workspace) SetVisible(uid string, visible bool) error {
	d, ok := w.datasets[uid]
	if !ok {
		return fmt.Errorf("dataset %s not found", uid)
	}
	d.Visible = visible
	return nil
}

// Snapshot returns a copy of the UID to collection map for concurrent readers.
func (w *Workspace) Snapshot() map[string]*geo.FeatureCollection {
	out := make(map[string]*geo.FeatureCollection, len(w.collections))
	for k, v := range w.collections {
		out[k] = v
	}
	return out
}
