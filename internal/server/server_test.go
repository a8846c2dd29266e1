package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/woozymasta/geobbox/internal/config"
	"github.com/woozymasta/geobbox/internal/geo"
	"github.com/woozymasta/geobbox/internal/index"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

const placesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "a"}, "geometry": {"type": "Point", "coordinates": [1, 1]}},
    {"type": "Feature", "properties": {"name": "b"}, "geometry": {"type": "Polygon", "coordinates": [[[5, 5], [6, 5], [6, 6], [5, 5]]]}},
    {"type": "Feature", "properties": {"name": "c"}, "geometry": {"type": "LineString", "coordinates": [[10, 10], [20, 20]]}}
  ]
}
`

type testServer struct {
	ctx     *ServerContext
	handler http.Handler
	index   *index.Index
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	places := config.Dataset{Name: "places", Path: filepath.Join(dir, "places.geojson"), Aliases: []string{"p"}}
	stale := config.Dataset{Name: "stale", Path: filepath.Join(dir, "stale.geojson")}
	missing := config.Dataset{Name: "missing", Path: filepath.Join(dir, "missing.geojson")}

	for _, ds := range []config.Dataset{places, stale} {
		if err := os.WriteFile(ds.Path, []byte(placesGeoJSON), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	idx, _, err := index.Build(strings.NewReader(placesGeoJSON))
	if err != nil {
		t.Fatal(err)
	}
	size := int64(len(placesGeoJSON))
	if err := index.SaveFile(places.IndexFile(dir), index.Header{SourceSize: size}, idx); err != nil {
		t.Fatal(err)
	}
	if err := index.SaveFile(stale.IndexFile(dir), index.Header{SourceSize: size + 1}, idx); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(places.PreviewFile(dir), []byte("RIFF-preview"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DataDir:     dir,
		Attribution: "test data",
		Datasets:    []config.Dataset{places, stale, missing},
	}

	ctx := NewServerContext(cfg, 10)
	t.Cleanup(ctx.Close)

	return &testServer{ctx: ctx, handler: ctx.Routes(), index: idx}
}

func (ts *testServer) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

type featureProps struct {
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

func names(t *testing.T, body []byte) []string {
	t.Helper()
	var fc geo.GeoJSONFeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if fc.Type != "FeatureCollection" {
		t.Fatalf("type = %q", fc.Type)
	}

	out := []string{}
	for _, raw := range fc.Features {
		var f featureProps
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatal(err)
		}
		out = append(out, f.Properties.Name)
	}
	return out
}

func TestDatasetsList(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/api/datasets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var list []datasetInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}

	want := []datasetInfo{{
		Name:        "places",
		Attribution: "test data",
		Aliases:     []string{"p"},
		BBox:        []float64{1, 1, 20, 20},
		Features:    3,
		Searchable:  3,
		Preview:     true,
	}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("datasets mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		target string
		want   []string
	}{
		{"/datasets/places/search?bbox=0,0,2,2", []string{"a"}},
		{"/datasets/p/search?bbox=6,6,10,10", []string{"b", "c"}},
		{"/datasets/places/search?bbox=15,15,16,16", []string{"c"}},
		{"/datasets/places/search?bbox=-5,-5,0.5,0.5", []string{}},
		{"/datasets/places/search", []string{"a", "b", "c"}},
		{"/datasets/places/search?limit=2", []string{"a", "b"}},
		{"/datasets/places/search?limit=500", []string{"a", "b", "c"}},
	}

	for _, test := range cases {
		t.Run(test.target, func(t *testing.T) {
			rec := ts.get(t, test.target, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if diff := cmp.Diff(test.want, names(t, rec.Body.Bytes())); diff != "" {
				t.Errorf("features mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchIsMinified(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/datasets/places/search?bbox=0,0,2,2", nil)
	body := rec.Body.String()
	if strings.Contains(body, " ") || !strings.Contains(body, `"coordinates":[1,1]`) {
		t.Errorf("body not minified: %s", body)
	}
	if !strings.Contains(body, `"bbox":[1,1,1,1]`) {
		t.Errorf("missing bbox member: %s", body)
	}
}

func TestSearchBadRequest(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{
		"/datasets/places/search?bbox=1,2,3",
		"/datasets/places/search?bbox=a,b,c,d",
		"/datasets/places/search?bbox=0,0,Inf,1",
		"/datasets/places/search?limit=0",
		"/datasets/places/search?limit=x",
	} {
		if rec := ts.get(t, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestFeature(t *testing.T) {
	ts := newTestServer(t)
	entries := ts.index.Entries()

	rec := ts.get(t, "/datasets/places/features/"+strconv.FormatInt(entries[1].Offset, 10), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var f featureProps
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.Properties.Name != "b" {
		t.Errorf("name = %q, want b", f.Properties.Name)
	}

	notIndexed := strconv.FormatInt(entries[1].Offset+1, 10)
	if rec := ts.get(t, "/datasets/places/features/"+notIndexed, nil); rec.Code != http.StatusNotFound {
		t.Errorf("non-indexed offset: status = %d", rec.Code)
	}
	if rec := ts.get(t, "/datasets/places/features/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad offset: status = %d", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{
		"/datasets/stale/search",
		"/datasets/missing/search",
		"/datasets/nope/search",
		"/datasets/places",
		"/datasets/places/other",
	} {
		if rec := ts.get(t, target, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestCoverageETag(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/datasets/p/coverage.webp", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "RIFF-preview" || rec.Header().Get("Content-Type") != "image/webp" {
		t.Errorf("unexpected response %q %q", rec.Header().Get("Content-Type"), rec.Body)
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no ETag")
	}

	rec = ts.get(t, "/datasets/places/coverage.webp", http.Header{"If-None-Match": {etag}})
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional request: status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/datasets/places/search", nil)

	rec := ts.get(t, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, metric := range []string{
		"geobbox_http_requests_total",
		"geobbox_search_results",
		"geobbox_index_entries",
	} {
		if !strings.Contains(rec.Body.String(), metric) {
			t.Errorf("metric %s not exported", metric)
		}
	}
}

func TestRoute(t *testing.T) {
	cases := map[string]string{
		"/api/datasets":                   "/api/datasets",
		"/datasets/x/search":              "/datasets/{name}/search",
		"/datasets/x/features/12":         "/datasets/{name}/features/{offset}",
		"/datasets/x/coverage.webp":       "/datasets/{name}/coverage.webp",
		"/datasets/x/something-random-42": "other",
		"/favicon.ico":                    "other",
	}
	for path, want := range cases {
		if got := route(path); got != want {
			t.Errorf("route(%q) = %q, want %q", path, got, want)
		}
	}
}
