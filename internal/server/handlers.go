// Package server exposes the workspace, exporters and temporal filter over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/export"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/temporal"

	"github.com/rs/zerolog/log"
)

// errNotFound marks a missing dataset.
var errNotFound = errors.New("dataset not found")

type errorResponse struct {
	Error string        `json:"error"`
	Kind  geo.ErrorKind `json:"kind,omitempty"`
}

// datasetView is the listing entry of a dataset.
type datasetView struct {
	*dataset.Dataset
	Files    []string      `json:"files"`
	Style    dataset.Style `json:"style"`
	Parsed   bool          `json:"parsed"`
	Features int           `json:"features,omitempty"`
}

type uploadResponse struct {
	Datasets []datasetView `json:"datasets"`
	Warnings []string      `json:"warnings"`
}

type detailResponse struct {
	Dataset    datasetView      `json:"dataset"`
	Collection *json.RawMessage `json:"collection,omitempty"`
	Raster     *geo.Raster      `json:"raster,omitempty"`
}

type temporalRequest struct {
	Datasets []string       `json:"datasets"` // UIDs; all visible datasets when empty
	Field    string         `json:"field"`
	State    temporal.State `json:"state"`
}

type temporalDataset struct {
	UID        string                 `json:"uid"`
	Collection *geo.FeatureCollection `json:"collection"`
	Count      int                    `json:"count"`
}

type temporalResponse struct {
	Datasets []temporalDataset `json:"datasets"`
	Domain   temporal.Domain   `json:"domain"`
	Lower    float64           `json:"lower"`
	Upper    float64           `json:"upper"`
}

// HandleFormats lists export formats.
func (s *ServerContext) HandleFormats(w http.ResponseWriter, _ *http.Request) {
	type format struct {
		Name string `json:"name"`
		Ext  string `json:"ext"`
		MIME string `json:"mime"`
	}
	out := []format{}
	for _, f := range export.Formats() {
		out = append(out, format{Name: string(f), Ext: f.Ext(), MIME: f.MIME()})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleUpload registers the files of a multipart upload as datasets.
func (s *ServerContext) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, geo.WrapError(geo.KindInputShape, err, "read upload"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var sources []dataset.Source
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, geo.WrapError(geo.KindInputShape, err, "open "+fh.Filename))
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				writeError(w, geo.WrapError(geo.KindInputShape, err, "read "+fh.Filename))
				return
			}
			sources = append(sources, dataset.NewMemorySource(fh.Filename, data))
		}
	}
	if len(sources) == 0 {
		writeError(w, geo.Errorf(geo.KindInputShape, "no files in upload"))
		return
	}

	s.mu.Lock()
	datasets, warnings := s.Workspace.Ingest(sources)
	resp := uploadResponse{Datasets: make([]datasetView, 0, len(datasets)), Warnings: warnings}
	for _, d := range datasets {
		resp.Datasets = append(resp.Datasets, s.view(d))
	}
	s.mu.Unlock()

	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleList lists datasets in registration order.
func (s *ServerContext) HandleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	list := s.Workspace.List()
	out := make([]datasetView, 0, len(list))
	for _, d := range list {
		out = append(out, s.view(d))
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

// HandleGet returns a dataset with its parsed normal form.
func (s *ServerContext) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("id")
	d, fc, raster, err := s.parse(uid)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.RLock()
	resp := detailResponse{Dataset: s.view(d), Raster: raster}
	s.mu.RUnlock()

	if fc != nil {
		data, err := fc.MarshalWithMetadata()
		if err != nil {
			writeError(w, err)
			return
		}
		raw := json.RawMessage(data)
		resp.Collection = &raw
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePreview serves the PNG preview of a raster dataset.
func (s *ServerContext) HandlePreview(w http.ResponseWriter, r *http.Request) {
	_, _, raster, err := s.parse(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if raster == nil || len(raster.Preview) == 0 {
		writeError(w, geo.Errorf(geo.KindUnsupported, "dataset has no raster preview"))
		return
	}

	etag := fmt.Sprintf(`"%s-%x"`, r.PathValue("id"), len(raster.Preview))
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	_, _ = w.Write(raster.Preview)
}

// HandleStyle replaces a dataset's style.
func (s *ServerContext) HandleStyle(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("id")
	style := dataset.DefaultStyle()
	if err := json.NewDecoder(r.Body).Decode(&style); err != nil {
		writeError(w, geo.WrapError(geo.KindInputShape, err, "decode style"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Workspace.Get(uid); !ok {
		writeError(w, errNotFound)
		return
	}
	if err := s.Workspace.SetStyle(uid, style); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, style)
}

// HandleVisible toggles a dataset's visibility flag.
func (s *ServerContext) HandleVisible(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("id")
	var body struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, geo.WrapError(geo.KindInputShape, err, "decode visibility"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Workspace.SetVisible(uid, body.Visible); err != nil {
		writeError(w, errNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a dataset and everything joined to it.
func (s *ServerContext) HandleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	removed := s.Workspace.Remove(r.PathValue("id"))
	s.mu.Unlock()

	if !removed {
		writeError(w, errNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport serializes a dataset with the posted ExportConfig, defaulting
// to the configured export settings.
func (s *ServerContext) HandleExport(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("id")
	cfg := s.Config.Export
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, geo.WrapError(geo.KindInputShape, err, "decode export config"))
			return
		}
	}

	_, fc, _, err := s.parse(uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if fc == nil {
		writeError(w, geo.Errorf(geo.KindUnsupported, "raster datasets cannot be exported"))
		return
	}

	s.mu.RLock()
	style, _ := s.Workspace.Style(uid)
	s.mu.RUnlock()

	res, err := s.Exporter.Export(r.Context(), fc, style, cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", res.MIME)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("X-Export-Features", fmt.Sprint(res.Features))
	w.Header().Set("X-Export-Warnings", fmt.Sprint(len(res.Warnings)))
	_, _ = w.Write(res.Bytes)
}

// HandleTemporal filters datasets by a timestamp property.
func (s *ServerContext) HandleTemporal(w http.ResponseWriter, r *http.Request) {
	// an omitted cursor shows everything up to the upper bound
	req := temporalRequest{State: temporal.State{Cursor: math.Inf(1)}}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, geo.WrapError(geo.KindInputShape, err, "decode temporal request"))
		return
	}
	if req.Field == "" {
		writeError(w, geo.Errorf(geo.KindInputShape, "field is required"))
		return
	}
	mode, err := temporal.ParseMode(string(req.State.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	req.State.Mode = mode

	uids := req.Datasets
	if len(uids) == 0 {
		s.mu.RLock()
		for _, d := range s.Workspace.List() {
			if d.Visible && !d.Kind.IsRaster() {
				uids = append(uids, d.UID)
			}
		}
		s.mu.RUnlock()
	}

	collections := make([]*geo.FeatureCollection, 0, len(uids))
	for _, uid := range uids {
		_, fc, _, err := s.parse(uid)
		if err != nil {
			writeError(w, err)
			return
		}
		if fc == nil {
			writeError(w, geo.Errorf(geo.KindUnsupported, "dataset %s is a raster", uid))
			return
		}
		collections = append(collections, fc)
	}

	engine := temporal.NewEngine(req.Field, collections...)
	filtered := engine.Filter(req.State)
	resp := temporalResponse{Domain: engine.Domain(), Datasets: make([]temporalDataset, len(filtered))}
	resp.Lower, resp.Upper = engine.Bounds(req.State)
	for i, fc := range filtered {
		resp.Datasets[i] = temporalDataset{UID: uids[i], Collection: fc, Count: len(fc.Features)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parse returns a dataset and its normal form, parsing on first use.
func (s *ServerContext) parse(uid string) (*dataset.Dataset, *geo.FeatureCollection, *geo.Raster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.Workspace.Get(uid)
	if !ok {
		return nil, nil, nil, errNotFound
	}
	fc, raster, err := s.Workspace.Parse(uid)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, fc, raster, nil
}

// view renders a dataset entry. Callers hold mu.
func (s *ServerContext) view(d *dataset.Dataset) datasetView {
	v := datasetView{Dataset: d, Files: d.FileNames()}
	v.Style, _ = s.Workspace.Style(d.UID)
	if fc, ok := s.Workspace.Collection(d.UID); ok {
		v.Parsed = true
		v.Features = len(fc.Features)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := geo.KindOf(err)
	switch {
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case kind == geo.KindInputShape:
		status = http.StatusBadRequest
	case kind == geo.KindDecode, kind == geo.KindCoordinateInvalid, kind == geo.KindIncomplete:
		status = http.StatusUnprocessableEntity
	case kind == geo.KindUnsupported:
		status = http.StatusUnsupportedMediaType
	case kind == geo.KindDownstreamIO:
		status = http.StatusBadGateway
	case kind == geo.KindCanceled:
		status = http.StatusRequestTimeout
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}
