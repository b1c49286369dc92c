package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/ingest"
)

const eventsGeoJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"name":"a","t":"2024-01-01T00:00:00Z"},"geometry":{"type":"Point","coordinates":[1,2]}},
	{"type":"Feature","properties":{"name":"b","t":"2024-01-02T00:00:00Z"},"geometry":{"type":"Point","coordinates":[3,4]}},
	{"type":"Feature","properties":{"name":"c","t":"2024-01-03T00:00:00Z"},"geometry":{"type":"Point","coordinates":[5,6]}}]}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := NewServerContext(config.Default(), ingest.NewRegistry(ingest.Options{}), nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, ts *httptest.Server, files map[string]string) uploadResponse {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.WriteString(fw, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/api/datasets", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUploadListGet(t *testing.T) {
	ts := newTestServer(t)
	up := upload(t, ts, map[string]string{"events.geojson": eventsGeoJSON, "readme.txt": "hello"})
	if len(up.Datasets) != 2 {
		t.Fatalf("datasets = %d", len(up.Datasets))
	}

	var uid string
	for _, d := range up.Datasets {
		if d.Label == "events.geojson" {
			uid = d.UID
		}
	}
	if uid == "" {
		t.Fatalf("events dataset missing: %+v", up.Datasets)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/datasets/"+uid, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var detail struct {
		Dataset    datasetView `json:"dataset"`
		Collection struct {
			Features []json.RawMessage `json:"features"`
			Metadata struct {
				Columns []string `json:"columns"`
			} `json:"metadata"`
		} `json:"collection"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Collection.Features) != 3 || !detail.Dataset.Parsed || detail.Dataset.Features != 3 {
		t.Errorf("detail = %+v", detail)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/datasets", "")
	var list []datasetView
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("list = %d", len(list))
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	up := upload(t, ts, map[string]string{"bad.geojson": `{not json`, "events.geojson": eventsGeoJSON})
	uids := map[string]string{}
	for _, d := range up.Datasets {
		uids[d.Label] = d.UID
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown dataset", http.MethodGet, "/api/datasets/missing", "", http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/datasets/missing", "", http.StatusNotFound},
		{"undecodable", http.MethodGet, "/api/datasets/" + uids["bad.geojson"], "", http.StatusUnprocessableEntity},
		{"bad symbology", http.MethodPut, "/api/datasets/" + uids["events.geojson"] + "/style", `{"symbology":{"kind":"categorical"}}`, http.StatusBadRequest},
		{"unknown format", http.MethodPost, "/api/datasets/" + uids["events.geojson"] + "/export", `{"format":"dwg"}`, http.StatusUnsupportedMediaType},
		{"vector preview", http.MethodGet, "/api/datasets/" + uids["events.geojson"] + "/preview", "", http.StatusUnsupportedMediaType},
		{"temporal without field", http.MethodPost, "/api/temporal", `{}`, http.StatusBadRequest},
		{"temporal bad mode", http.MethodPost, "/api/temporal", `{"field":"t","state":{"mode":"sideways"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				b, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.want, b)
			}
		})
	}
}

func TestStyleAndExport(t *testing.T) {
	ts := newTestServer(t)
	up := upload(t, ts, map[string]string{"events.geojson": eventsGeoJSON})
	uid := up.Datasets[0].UID

	resp := do(t, http.MethodPut, ts.URL+"/api/datasets/"+uid+"/style", `{"color":"#ff0000","symbology":{"kind":"single","color":"#00ff00"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("style status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/datasets/"+uid+"/export", `{"format":"kml","prefix":"run_","filename-stem":"events"}`)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("export status = %d (%s)", resp.StatusCode, b)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "run_events.kml") {
		t.Errorf("content disposition = %q", cd)
	}
	if got := resp.Header.Get("X-Export-Features"); got != "3" {
		t.Errorf("features header = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Count(string(body), "<Placemark>") != 3 {
		t.Errorf("placemarks = %d", strings.Count(string(body), "<Placemark>"))
	}
	// KML colours are aabbggrr
	if !strings.Contains(string(body), "ff00ff00") {
		t.Errorf("symbology colour missing from KML")
	}

	resp = do(t, http.MethodDelete, ts.URL+"/api/datasets/"+uid, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodPost, ts.URL+"/api/datasets/"+uid+"/export", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("export after delete status = %d", resp.StatusCode)
	}
}

func TestTemporal(t *testing.T) {
	ts := newTestServer(t)
	up := upload(t, ts, map[string]string{"events.geojson": eventsGeoJSON})
	uid := up.Datasets[0].UID

	const jan1, jan3 = 1704067200000, 1704240000000
	tests := []struct {
		name string
		body string
		want int
	}{
		{"full without cursor", `{"field":"t"}`, 3},
		{"window", `{"field":"t","state":{"mode":"window","rangeStart":1704067200000,"rangeEnd":1704153600000,"cursor":1704153600000}}`, 2},
		{"cumulative", `{"datasets":["` + uid + `"],"field":"t","state":{"mode":"cumulative","cursor":1704067200000}}`, 1},
		{"unknown field", `{"field":"missing"}`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/temporal", tt.body)
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				t.Fatalf("status = %d (%s)", resp.StatusCode, b)
			}
			var out struct {
				Datasets []struct {
					UID   string `json:"uid"`
					Count int    `json:"count"`
				} `json:"datasets"`
				Domain struct {
					Min   float64 `json:"min"`
					Max   float64 `json:"max"`
					Known bool    `json:"known"`
				} `json:"domain"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if len(out.Datasets) != 1 || out.Datasets[0].UID != uid || out.Datasets[0].Count != tt.want {
				t.Errorf("datasets = %+v, want count %d", out.Datasets, tt.want)
			}
			if out.Domain.Known && (out.Domain.Min != jan1 || out.Domain.Max != jan3) {
				t.Errorf("domain = %+v", out.Domain)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, http.MethodGet, ts.URL+"/api/formats", "")
	var formats []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&formats); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range formats {
		names[f.Name] = true
	}
	for _, want := range []string{"geojson", "kml", "kmz", "gpx", "csv", "shapefile", "png", "svg", "geotiff"} {
		if !names[want] {
			t.Errorf("format %s missing from %v", want, names)
		}
	}
}
