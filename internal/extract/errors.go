package extract

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrBoundaryNotFound is returned when the input ends before a required marker.
	ErrBoundaryNotFound = errors.New("boundary not found")

	// ErrMalformed matches every *FeatureError via errors.Is.
	ErrMalformed = errors.New("malformed feature")

	// errMismatch signals that a shape candidate does not apply here and the
	// next candidate should be tried. It never leaves the resolver.
	errMismatch = errors.New("structural mismatch")
)

// FeatureError reports a feature whose coordinates could not be resolved.
// The feature is skipped and extraction continues with the next one.
type FeatureError struct {
	Offset int64 // offset of the feature's opening brace
	Pos    int64 // offset where parsing failed
	Err    error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("malformed feature at byte %d: %v (at byte %d)", e.Offset, e.Err, e.Pos)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformed) hold for every FeatureError.
func (e *FeatureError) Is(target error) bool {
	return target == ErrMalformed
}

// ReadError indicates that the underlying reader failed. It ends the
// extraction run; records returned before it remain valid.
type ReadError struct {
	Pos int64
	Err error
}

func (e *ReadError) Error() string {
	return "read failed at byte " + strconv.FormatInt(e.Pos, 10) + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type syntaxError struct {
	pos int64
	msg string
}

func (e *syntaxError) Error() string {
	return e.msg
}
