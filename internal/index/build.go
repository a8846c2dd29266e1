package index

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/woozymasta/geobbox/internal/extract"

	"github.com/rs/zerolog/log"
)

// Stats summarizes an index build.
type Stats struct {
	Features int
	Empty    int
	Skipped  int
	Sections int
	Duration time.Duration
}

// Build extracts every feature of r in a single sequential pass.
// On a read failure the entries extracted so far are returned with the error.
func Build(r io.Reader) (*Index, Stats, error) {
	start := time.Now()

	ex := extract.NewExtractor(r)
	entries, empty, err := collect(ex)

	st := Stats{
		Features: len(entries),
		Empty:    empty,
		Skipped:  ex.Skipped(),
		Sections: 1,
		Duration: time.Since(start),
	}
	if err != nil {
		return New(entries), st, fmt.Errorf("extract: %w", err)
	}

	return New(entries), st, nil
}

// BuildParallel cuts the source into feature-aligned sections after a cheap
// boundary pass and extracts them concurrently. The result is identical to
// Build over the same bytes.
func BuildParallel(ra io.ReaderAt, size int64, workers int) (*Index, Stats, error) {
	start := time.Now()

	if workers <= 1 {
		return Build(io.NewSectionReader(ra, 0, size))
	}

	offsets, err := extract.Boundaries(io.NewSectionReader(ra, 0, size))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("boundary pass: %w", err)
	}
	if len(offsets) < 2 {
		return Build(io.NewSectionReader(ra, 0, size))
	}

	if workers > len(offsets) {
		workers = len(offsets)
	}

	// the first section also covers any envelope before the first feature
	starts := make([]int64, workers)
	for i := 1; i < workers; i++ {
		starts[i] = offsets[i*len(offsets)/workers]
	}

	log.Debug().
		Int("features", len(offsets)).
		Int("sections", workers).
		Msg("Boundary pass finished")

	type section struct {
		entries []Entry
		empty   int
		skipped int
		err     error
	}
	sections := make([]section, workers)

	jobs := make(chan int, workers)
	for i := range workers {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				end := size
				if i+1 < workers {
					end = starts[i+1]
				}

				ex := extract.NewSectionExtractor(ra, starts[i], end-starts[i], i+1 < workers)
				entries, empty, err := collect(ex)
				sections[i] = section{entries: entries, empty: empty, skipped: ex.Skipped(), err: err}
			}
		}()
	}
	wg.Wait()

	st := Stats{Sections: workers}
	entries := make([]Entry, 0, len(offsets))
	for i, s := range sections {
		if s.err != nil {
			return nil, st, fmt.Errorf("extract section %d at byte %d: %w", i, starts[i], s.err)
		}
		entries = append(entries, s.entries...)
		st.Empty += s.empty
		st.Skipped += s.skipped
	}

	st.Features = len(entries)
	st.Duration = time.Since(start)

	return New(entries), st, nil
}

func collect(ex *extract.Extractor) ([]Entry, int, error) {
	var entries []Entry
	empty := 0

	for rec, err := range ex.All() {
		if err != nil {
			return entries, empty, err
		}
		if rec.Empty() {
			empty++
		}
		entries = append(entries, fromRecord(rec))
	}

	return entries, empty, nil
}
