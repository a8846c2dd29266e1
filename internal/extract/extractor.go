// Package extract computes per-feature bounding boxes from GeoJSON streams in
// a single forward pass, without decoding geometries.
//
// The input may be a FeatureCollection, a bare array of features, a single
// Feature or a single Geometry. For every feature the extractor yields a
// Record holding the offset of the feature's opening brace and the extent of
// its coordinates, in document order, so a caller can build an index and
// later re-read exactly one feature from its offset.
package extract

import (
	"errors"
	"io"
	"iter"

	"github.com/woozymasta/geobbox/internal/geo"

	"github.com/rs/zerolog/log"
)

var (
	litBrace       = []byte("{")
	litCoordinates = []byte(`"coordinates"`)

	geometryTypes = []string{
		`"Point"`, `"MultiPoint"`,
		`"LineString"`, `"MultiLineString"`,
		`"Polygon"`, `"MultiPolygon"`,
	}
)

// Record is the bounding box of one feature and the stream offset of the
// feature's opening brace.
type Record struct {
	Offset int64
	Box    geo.BBox
}

// Empty reports whether the feature had no coordinate pairs.
// Such records are still emitted; skipping them is up to the consumer.
func (r Record) Empty() bool {
	return r.Box.IsEmpty()
}

type state int

const (
	stateAwaitCollectionOrFeature state = iota
	stateSeekFeature
	stateResolveCoordinates
	stateEmitRecord
	stateDone
)

// Extractor is a pull-based feature locator. It is not safe for concurrent use.
type Extractor struct {
	// OnSkip is called for every feature dropped because its coordinates
	// could not be resolved.
	OnSkip func(*FeatureError)

	s     *scanner
	state state

	offset int64
	box    geo.BBox
	shape  Shape

	pending    int64 // next feature found while seeking coordinates
	hasPending bool

	single bool // bare geometry: exactly one record
	open   bool // input ends where the next feature would begin

	skipped int
	err     error
}

// NewExtractor returns an Extractor reading r from its current position,
// which is taken as offset 0.
func NewExtractor(r io.Reader) *Extractor {
	return &Extractor{s: newScanner(r, 0)}
}

// NewSectionExtractor returns an Extractor over n bytes of r starting at off.
// Records carry offsets relative to the start of r. The section must start at
// a feature boundary. If open is true the section is known to end where
// another feature starts, so running out of input while looking for a
// feature's coordinates yields an empty record instead of an error.
func NewSectionExtractor(r io.ReaderAt, off, n int64, open bool) *Extractor {
	return &Extractor{
		s:     newScanner(io.NewSectionReader(r, off, n), off),
		state: stateSeekFeature,
		open:  open,
	}
}

// Next returns the next feature record. It returns io.EOF once the input is
// exhausted. Malformed features are skipped and reported through OnSkip; any
// other error is fatal and returned again by every later call.
func (e *Extractor) Next() (Record, error) {
	for {
		switch e.state {
		case stateAwaitCollectionOrFeature:
			if err := e.awaitCollectionOrFeature(); err != nil {
				return Record{}, e.fail(err)
			}

		case stateSeekFeature:
			off, err := seekFeature(e.s)
			if errors.Is(err, ErrBoundaryNotFound) {
				e.state = stateDone
				continue
			}
			if err != nil {
				return Record{}, e.fail(err)
			}
			e.offset = off
			e.state = stateResolveCoordinates

		case stateResolveCoordinates:
			err := e.resolveCoordinates()
			var fe *FeatureError
			if errors.As(err, &fe) {
				e.skip(fe)
				continue
			}
			if err != nil {
				return Record{}, e.fail(err)
			}
			e.state = stateEmitRecord

		case stateEmitRecord:
			rec := Record{Offset: e.offset, Box: e.box}
			e.state = e.following()
			return rec, nil

		default:
			if e.err != nil {
				return Record{}, e.err
			}
			return Record{}, io.EOF
		}
	}
}

// All returns an iterator over the remaining records. Iteration stops after
// the first fatal error, which is yielded once.
func (e *Extractor) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := e.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Skipped returns the number of malformed features dropped so far.
func (e *Extractor) Skipped() int {
	return e.skipped
}

// Shape returns the coordinate shape of the most recent record.
func (e *Extractor) Shape() Shape {
	return e.shape
}

// awaitCollectionOrFeature classifies the document start. A collection
// envelope or a bare array leads to feature seeking, as does a bare Feature,
// which seeking finds again at its own brace. A bare geometry is resolved
// directly as the only record.
func (e *Extractor) awaitCollectionOrFeature() error {
	s := e.s
	e.state = stateSeekFeature

	if err := s.skipSpace(); err != nil {
		return err
	}
	c, err := s.peekByte()
	if err == io.EOF {
		e.state = stateDone
		return nil
	}
	if err != nil {
		return err
	}

	switch c {
	case '[':
		s.advance(1)
		return nil
	case '{':
	default:
		// leading noise, let seeking sort it out
		return nil
	}

	start := s.offset()
	s.mark()
	defer s.release()

	s.advance(1)
	ok, err := s.matchTokens(`"type"`, ":", `"FeatureCollection"`, ",", `"features"`, ":")
	if err != nil {
		return err
	}
	if ok {
		_, err := s.matchToken("[")
		return err
	}

	s.reset()
	s.advance(1)
	ok, err = s.matchTokens(`"type"`, ":")
	if err != nil {
		return err
	}
	if ok {
		for _, name := range geometryTypes {
			ok, err := s.matchToken(name)
			if err != nil {
				return err
			}
			if ok {
				e.offset = start
				e.single = true
				e.state = stateResolveCoordinates
				return nil
			}
		}
	}

	s.reset()
	return nil
}

// resolveCoordinates seeks the current feature's "coordinates" key and folds
// its value into a fresh box.
func (e *Extractor) resolveCoordinates() error {
	s := e.s
	e.box = geo.EmptyBBox()
	e.shape = ShapeNone

	for {
		which, err := s.seek(litCoordinates, litBrace)
		if errors.Is(err, ErrBoundaryNotFound) {
			if e.open {
				return nil
			}
			return &FeatureError{Offset: e.offset, Pos: s.offset(), Err: err}
		}
		if err != nil {
			return err
		}

		if which == 1 {
			// A new feature before any coordinates: this one has no geometry.
			off := s.offset()
			s.advance(1)
			ok, err := matchFeatureTail(s)
			if err != nil {
				return err
			}
			if ok {
				e.pending, e.hasPending = off, true
				return nil
			}
			continue
		}

		s.advance(len(litCoordinates))
		break
	}

	ok, err := s.matchToken(":")
	if err != nil {
		return e.featureError(err)
	}
	if !ok {
		return e.featureError(s.errorf(`expected ':' after "coordinates"`))
	}

	shape, err := resolve(s, &e.box)
	if err != nil {
		return e.featureError(err)
	}
	e.shape = shape

	return nil
}

// featureError wraps syntax errors of the current feature; read failures
// are passed through unchanged.
func (e *Extractor) featureError(err error) error {
	var se *syntaxError
	if !errors.As(err, &se) {
		return err
	}
	return &FeatureError{Offset: e.offset, Pos: se.pos, Err: err}
}

func (e *Extractor) skip(fe *FeatureError) {
	e.skipped++

	log.Warn().
		Int64("offset", fe.Offset).
		Int64("pos", fe.Pos).
		Err(fe.Err).
		Msg("Skipping malformed feature")

	if e.OnSkip != nil {
		e.OnSkip(fe)
	}

	e.state = e.following()
}

// following returns the state after the current feature is done.
func (e *Extractor) following() state {
	switch {
	case e.hasPending:
		e.offset = e.pending
		e.hasPending = false
		return stateResolveCoordinates
	case e.single:
		return stateDone
	default:
		return stateSeekFeature
	}
}

func (e *Extractor) fail(err error) error {
	e.err = err
	e.state = stateDone
	return err
}

// seekFeature finds the next '{' that opens a Feature object and returns its
// offset. The cursor is left after the "Feature" type value.
func seekFeature(s *scanner) (int64, error) {
	for {
		if _, err := s.seek(litBrace); err != nil {
			return 0, err
		}

		off := s.offset()
		s.advance(1)

		ok, err := matchFeatureTail(s)
		if err != nil {
			return 0, err
		}
		if ok {
			return off, nil
		}
	}
}

// matchFeatureTail matches `"type" : "Feature"` right after a '{'.
func matchFeatureTail(s *scanner) (bool, error) {
	return s.matchTokens(`"type"`, ":", `"Feature"`)
}
