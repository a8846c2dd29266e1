package extract

import (
	"io"

	"github.com/woozymasta/geobbox/internal/geo"
)

// Shape is the coordinate nesting found under a "coordinates" key.
type Shape int

// Shapes in increasing nesting depth. ShapeNone means no coordinates value was
// resolved.
const (
	ShapeNone Shape = iota
	ShapePosition
	ShapeRing
	ShapePolygon
	ShapeMultiPolygon
)

func (s Shape) String() string {
	switch s {
	case ShapePosition:
		return "position"
	case ShapeRing:
		return "ring"
	case ShapePolygon:
		return "polygon"
	case ShapeMultiPolygon:
		return "multipolygon"
	default:
		return "none"
	}
}

// candidates are tried deepest nesting first: a position is a prefix of a
// ring, which is a prefix of a polygon, which is a prefix of a multipolygon.
var candidates = [...]struct {
	shape Shape
	parse func(*resolver) error
}{
	{ShapeMultiPolygon, (*resolver).multiPolygon},
	{ShapePolygon, (*resolver).polygon},
	{ShapeRing, (*resolver).ring},
	{ShapePosition, (*resolver).position},
}

type resolver struct {
	s   *scanner
	box *geo.BBox
}

// resolve reads one coordinates value at the cursor and folds every position
// it contains into box. A mismatch rewinds to the opening bracket and tries
// the next candidate; any other error is final.
func resolve(s *scanner, box *geo.BBox) (Shape, error) {
	r := resolver{s: s, box: box}

	s.mark()
	defer s.release()

	for _, c := range candidates {
		err := c.parse(&r)
		if err == nil {
			return c.shape, nil
		}
		if err != errMismatch {
			return ShapeNone, err
		}
		s.reset()
	}

	return ShapeNone, s.errorf("expected '[' to start coordinates")
}

func (r *resolver) multiPolygon() error {
	return r.list((*resolver).polygon)
}

func (r *resolver) polygon() error {
	return r.list((*resolver).ring)
}

func (r *resolver) ring() error {
	return r.list((*resolver).position)
}

// list parses '[' elem (',' elem)* ']'. Only a mismatch on the first element
// is soft; after a comma the element is required.
func (r *resolver) list(elem func(*resolver) error) error {
	ok, err := r.s.matchToken("[")
	if err != nil {
		return err
	}
	if !ok {
		return errMismatch
	}

	if err := elem(r); err != nil {
		return err
	}

	for {
		ok, err := r.s.matchToken(",")
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if err := elem(r); err != nil {
			if err == errMismatch {
				return r.s.errorf("expected '[' after ','")
			}
			return err
		}
	}

	ok, err = r.s.matchToken("]")
	if err != nil {
		return err
	}
	if !ok {
		return r.s.errorf("expected ',' or ']'")
	}

	return nil
}

// position parses '[' (x ',' y)? (',' n)* ']' and folds (x, y) when the pair
// is present. A position without the pair, such as [] or [,3], folds nothing.
func (r *resolver) position() error {
	s := r.s

	ok, err := s.matchToken("[")
	if err != nil {
		return err
	}
	if !ok {
		return errMismatch
	}

	// Past this bracket nothing can mismatch any more, so the lookahead is
	// no longer needed.
	s.release()

	ok, err = s.matchToken("]")
	if err != nil || ok {
		return err
	}

	if err := s.skipSpace(); err != nil {
		return err
	}
	c, err := s.peekByte()
	if err != nil && err != io.EOF {
		return err
	}

	var x, y float64
	hasPair := err == io.EOF || c != ','
	if hasPair {
		if x, err = s.readNumber(); err != nil {
			return err
		}
		ok, err = s.matchToken(",")
		if err != nil {
			return err
		}
		if !ok {
			return s.errorf("expected ',' between x and y")
		}
		if y, err = s.readNumber(); err != nil {
			return err
		}
	}

	// extra dimensions are read and dropped
	for {
		ok, err := s.matchToken(",")
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := s.readNumber(); err != nil {
			return err
		}
	}

	ok, err = s.matchToken("]")
	if err != nil {
		return err
	}
	if !ok {
		return s.errorf("expected ']' to close position")
	}

	if hasPair {
		r.box.Fold(x, y)
	}
	return nil
}
