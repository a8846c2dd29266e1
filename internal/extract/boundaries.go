package extract

import (
	"errors"
	"io"
)

// BoundaryScanner finds the opening brace of every Feature without looking
// at coordinates. It is the cheap first pass used to cut a file into
// feature-aligned sections.
type BoundaryScanner struct {
	s    *scanner
	done bool
	err  error
}

// NewBoundaryScanner returns a BoundaryScanner reading r from offset 0.
func NewBoundaryScanner(r io.Reader) *BoundaryScanner {
	return &BoundaryScanner{s: newScanner(r, 0)}
}

// Next returns the offset of the next Feature, or io.EOF when there is none.
func (b *BoundaryScanner) Next() (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.done {
		return 0, io.EOF
	}

	off, err := seekFeature(b.s)
	if errors.Is(err, ErrBoundaryNotFound) {
		b.done = true
		return 0, io.EOF
	}
	if err != nil {
		b.err = err
		return 0, err
	}

	return off, nil
}

// Boundaries collects every Feature offset in r.
func Boundaries(r io.Reader) ([]int64, error) {
	b := NewBoundaryScanner(r)

	var offsets []int64
	for {
		off, err := b.Next()
		if err == io.EOF {
			return offsets, nil
		}
		if err != nil {
			return offsets, err
		}
		offsets = append(offsets, off)
	}
}
