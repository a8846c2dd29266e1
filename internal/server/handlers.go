// Package server handles HTTP requests and middleware.
package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/woozymasta/geobbox/internal/geo"
	"github.com/woozymasta/geobbox/internal/index"
	"github.com/woozymasta/geobbox/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const etagCap = 64

// Routes returns the API routes wrapped in the request logger.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets", s.HandleDatasetsList)
	mux.HandleFunc("/datasets/", s.HandleDataset)
	mux.Handle("/metrics", metrics.Handler())

	return RequestLogger(mux)
}

// datasetInfo is a public view of a loaded dataset.
type datasetInfo struct {
	Name        string    `json:"name"`
	Attribution string    `json:"attribution,omitempty"`
	Aliases     []string  `json:"aliases,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	Features    int       `json:"features"`
	Searchable  int       `json:"searchable"`
	Skipped     int       `json:"skipped"`
	Preview     bool      `json:"preview"`
}

// HandleDatasetsList serves the JSON list of loaded datasets.
func (s *ServerContext) HandleDatasetsList(w http.ResponseWriter, r *http.Request) {
	list := make([]datasetInfo, 0, len(s.Datasets))
	for _, ds := range s.Datasets {
		info := datasetInfo{
			Name:        ds.Name,
			Attribution: ds.Attribution,
			Aliases:     ds.Aliases,
			Features:    ds.Index.Len(),
			Searchable:  ds.Index.Searchable(),
			Skipped:     ds.Skipped,
			Preview:     ds.PreviewPath != "",
		}
		if b := ds.Index.Bounds(); b.IsFinite() {
			info.BBox = []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
		}
		list = append(list, info)
	}

	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(list)
}

// HandleDataset serves search results, single features and coverage previews.
func (s *ServerContext) HandleDataset(w http.ResponseWriter, r *http.Request) {
	// Path: /datasets/{name}/...
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}

	ds, ok := s.NameResolver[parts[1]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 3 && parts[2] == "search":
		s.handleSearch(w, r, ds)

	case len(parts) == 4 && parts[2] == "features":
		offset, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			http.Error(w, "invalid feature offset", http.StatusBadRequest)
			return
		}
		s.handleFeature(w, r, ds, offset)

	case len(parts) == 3 && parts[2] == "coverage.webp":
		if ds.PreviewPath == "" || !s.serveFile(w, r, ds.PreviewPath, "image/webp") {
			http.NotFound(w, r)
		}

	default:
		http.NotFound(w, r)
	}
}

func (s *ServerContext) handleSearch(w http.ResponseWriter, r *http.Request, ds *Dataset) {
	query := r.URL.Query()

	box := ds.Index.Bounds()
	if raw := query.Get("bbox"); raw != "" {
		var err error
		if box, err = geo.ParseBBox(raw); err != nil || !box.IsFinite() {
			http.Error(w, "invalid bbox, want minx,miny,maxx,maxy", http.StatusBadRequest)
			return
		}
	}

	limit := s.SearchLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, s.SearchLimit)
	}

	entries := ds.Index.Search(box, limit)
	metrics.SearchResults.WithLabelValues(ds.Name).Observe(float64(len(entries)))

	features := make([]json.RawMessage, 0, len(entries))
	var extent geo.BBox
	for _, e := range entries {
		raw, err := index.ReadFeature(ds.Source, e.Offset)
		if err != nil {
			log.Error().
				Err(err).
				Str("dataset", ds.Name).
				Int64("offset", e.Offset).
				Msg("Failed to re-read feature")
			http.Error(w, "failed to read feature", http.StatusInternalServerError)
			return
		}
		features = append(features, raw)
		extent.Merge(e.Box)
	}

	data, err := json.Marshal(geo.NewFeatureCollection(features, extent))
	if err != nil {
		http.Error(w, "failed to encode features", http.StatusInternalServerError)
		return
	}

	s.writeMinified(w, "application/geo+json", data)
}

func (s *ServerContext) handleFeature(w http.ResponseWriter, r *http.Request, ds *Dataset, offset int64) {
	// only indexed offsets may be read from the source
	if _, ok := ds.Index.Lookup(offset); !ok {
		http.NotFound(w, r)
		return
	}

	raw, err := index.ReadFeature(ds.Source, offset)
	if err != nil {
		log.Error().
			Err(err).
			Str("dataset", ds.Name).
			Int64("offset", offset).
			Msg("Failed to re-read feature")
		http.Error(w, "failed to read feature", http.StatusInternalServerError)
		return
	}

	s.writeMinified(w, "application/geo+json", raw)
}

func (s *ServerContext) writeMinified(w http.ResponseWriter, mediatype string, data []byte) {
	out, err := s.Minifier.Bytes(mediatype, data)
	if err != nil {
		log.Debug().Err(err).Msg("Minify failed, serving as is")
		out = data
	}

	w.Header().Set("Content-Type", mediatype)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("Failed to stat file")
		}
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
