package server

import (
	"os"

	"github.com/woozymasta/geobbox/internal/config"
	"github.com/woozymasta/geobbox/internal/index"
	"github.com/woozymasta/geobbox/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"
)

// Dataset is a configured dataset with its loaded index and open source file.
type Dataset struct {
	config.Dataset

	Index       *index.Index
	Source      *os.File
	Skipped     int
	PreviewPath string
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config       *config.Config
	Datasets     []*Dataset
	NameResolver map[string]*Dataset
	Minifier     *minify.M
	SearchLimit  int
}

// NewServerContext loads the index of every configured dataset.
// Datasets without a usable index or source are skipped with a warning.
func NewServerContext(cfg *config.Config, searchLimit int) *ServerContext {
	log.Info().Int("config_datasets_count", len(cfg.Datasets)).Msg("Initializing server context")

	resolver := make(map[string]*Dataset)
	datasets := make([]*Dataset, 0, len(cfg.Datasets))

	for _, cds := range cfg.Datasets {
		if cds.Attribution == "" {
			cds.Attribution = cfg.Attribution
		}

		ds, ok := openDataset(cds, cfg.DataDir)
		if !ok {
			continue
		}

		// Setup Resolver
		resolver[ds.Name] = ds
		for _, alias := range ds.Aliases {
			resolver[alias] = ds
		}

		metrics.IndexEntries.WithLabelValues(ds.Name).Set(float64(ds.Index.Len()))

		log.Debug().
			Str("dataset", ds.Name).
			Int("entries", ds.Index.Len()).
			Int("searchable", ds.Index.Searchable()).
			Bool("preview", ds.PreviewPath != "").
			Msg("Dataset validated and added to context")

		datasets = append(datasets, ds)
	}

	if searchLimit <= 0 {
		searchLimit = 1000
	}

	m := minify.New()
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("application/geo+json", json.Minify)

	log.Info().
		Int("valid_datasets_count", len(datasets)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:       cfg,
		Datasets:     datasets,
		NameResolver: resolver,
		Minifier:     m,
		SearchLimit:  searchLimit,
	}
}

func openDataset(cds config.Dataset, dataDir string) (*Dataset, bool) {
	indexFile := cds.IndexFile(dataDir)
	idx, header, err := index.LoadFile(indexFile)
	if err != nil {
		log.Warn().
			Err(err).
			Str("dataset", cds.Name).
			Msg("Skipping dataset: index not available")
		return nil, false
	}

	src, err := os.Open(cds.Path)
	if err != nil {
		log.Warn().
			Err(err).
			Str("dataset", cds.Name).
			Msg("Skipping dataset: source not readable")
		return nil, false
	}

	// offsets of a stale index point into the wrong bytes
	if info, err := src.Stat(); err != nil || info.Size() != header.SourceSize {
		_ = src.Close()
		log.Warn().
			Str("dataset", cds.Name).
			Str("path", indexFile).
			Msg("Skipping dataset: index does not match source, rebuild it")
		return nil, false
	}

	ds := &Dataset{
		Dataset: cds,
		Index:   idx,
		Source:  src,
		Skipped: header.Skipped,
	}

	preview := cds.PreviewFile(dataDir)
	if _, err := os.Stat(preview); err == nil {
		ds.PreviewPath = preview
	} else {
		log.Trace().
			Str("dataset", cds.Name).
			Str("path", preview).
			Msg("Coverage preview not found")
	}

	return ds, true
}

// Close releases the open source files.
func (s *ServerContext) Close() {
	for _, ds := range s.Datasets {
		if err := ds.Source.Close(); err != nil {
			log.Error().Err(err).Str("dataset", ds.Name).Msg("Failed to close source")
		}
	}
}
