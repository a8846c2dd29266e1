// Package processor builds dataset indexes and their coverage previews.
package processor

import (
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/geobbox/internal/config"
	"github.com/woozymasta/geobbox/internal/index"
	"github.com/woozymasta/geobbox/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Options control a single dataset run.
type Options struct {
	DataDir     string
	Workers     int
	PreviewSize int
	Force       bool
	NoPreview   bool
}

// Result describes what ProcessDataset did.
type Result struct {
	Index *index.Index
	Stats index.Stats
	Fresh bool // existing index was up to date and reused
}

// ProcessDataset builds the index of ds unless an up to date one exists,
// then renders its coverage preview.
func ProcessDataset(ds config.Dataset, opts Options) (Result, error) {
	indexFile := ds.IndexFile(opts.DataDir)

	src, err := os.Open(ds.Path)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return Result{}, err
	}

	if !opts.Force {
		if idx, ok := loadFresh(indexFile, info); ok {
			log.Debug().
				Str("dataset", ds.Name).
				Str("path", indexFile).
				Msg("Index is up to date, skipping")

			return Result{Index: idx, Fresh: true}, nil
		}
	}

	log.Info().
		Str("dataset", ds.Name).
		Str("source", ds.Path).
		Int64("size", info.Size()).
		Int("workers", opts.Workers).
		Msg("Building index")

	var (
		idx *index.Index
		st  index.Stats
	)
	if info.Mode().IsRegular() && opts.Workers > 1 {
		idx, st, err = index.BuildParallel(src, info.Size(), opts.Workers)
	} else {
		idx, st, err = index.Build(src)
	}

	metrics.FeaturesIndexed.WithLabelValues(ds.Name).Add(float64(st.Features))
	metrics.FeaturesSkipped.WithLabelValues(ds.Name).Add(float64(st.Skipped))
	metrics.BuildDuration.WithLabelValues(ds.Name).Observe(st.Duration.Seconds())

	if err != nil {
		return Result{Stats: st}, fmt.Errorf("build index of %s: %w", ds.Name, err)
	}

	header := index.Header{Source: ds.Path, SourceSize: info.Size(), Skipped: st.Skipped}
	if err := index.SaveFile(indexFile, header, idx); err != nil {
		return Result{Stats: st}, fmt.Errorf("save index of %s: %w", ds.Name, err)
	}

	log.Info().
		Str("dataset", ds.Name).
		Int("features", st.Features).
		Int("empty", st.Empty).
		Int("skipped", st.Skipped).
		Int("sections", st.Sections).
		Str("bounds", idx.Bounds().String()).
		Dur("duration", st.Duration).
		Msg("Index saved")

	if !opts.NoPreview && !ds.NoPreview {
		start := time.Now()
		img := RenderCoverage(idx.Entries(), idx.Bounds(), opts.PreviewSize)
		if err := SavePreview(ds.PreviewFile(opts.DataDir), img); err != nil {
			return Result{Index: idx, Stats: st}, fmt.Errorf("save preview of %s: %w", ds.Name, err)
		}

		log.Debug().
			Str("dataset", ds.Name).
			Int("size", opts.PreviewSize).
			Dur("duration", time.Since(start)).
			Msg("Coverage preview saved")
	}

	return Result{Index: idx, Stats: st}, nil
}

// loadFresh loads the index at path if it was written after the source last
// changed and records the same source size.
func loadFresh(path string, source os.FileInfo) (*index.Index, bool) {
	info, err := os.Stat(path)
	if err != nil || info.ModTime().Before(source.ModTime()) {
		return nil, false
	}

	idx, header, err := index.LoadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Existing index is unreadable, rebuilding")
		return nil, false
	}
	if header.SourceSize != source.Size() {
		return nil, false
	}

	return idx, true
}
