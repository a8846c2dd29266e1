package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is a running axis-aligned extent over folded positions.
// The zero value is an empty box, which is distinct from (0,0,0,0).
type BBox struct {
	MinX, MinY, MaxX, MaxY float64

	set bool
}

// EmptyBBox returns a box with no positions folded in.
func EmptyBBox() BBox {
	return BBox{}
}

// NewBBox returns a non-empty box with the given corners.
func NewBBox(minX, minY, maxX, maxY float64) BBox {
	return BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, set: true}
}

// IsEmpty reports whether no position has been folded in yet.
func (b BBox) IsEmpty() bool {
	return !b.set
}

// Fold extends the box to include (x, y).
// Inputs are not sanitized. A NaN on an axis makes both ends of that axis NaN,
// even when the other end is infinite.
func (b *BBox) Fold(x, y float64) {
	if !b.set {
		b.MinX, b.MaxX = x, x
		b.MinY, b.MaxY = y, y
		b.set = true
		return
	}

	b.MinX = minNaN(b.MinX, x)
	b.MinY = minNaN(b.MinY, y)
	b.MaxX = maxNaN(b.MaxX, x)
	b.MaxY = maxNaN(b.MaxY, y)
}

// Merge extends the box to include other. Merging an empty box is a no-op.
func (b *BBox) Merge(other BBox) {
	if !other.set {
		return
	}
	if !b.set {
		*b = other
		return
	}

	b.MinX = minNaN(b.MinX, other.MinX)
	b.MinY = minNaN(b.MinY, other.MinY)
	b.MaxX = maxNaN(b.MaxX, other.MaxX)
	b.MaxY = maxNaN(b.MaxY, other.MaxY)
}

// minNaN is math.Min with NaN taking priority over infinities.
func minNaN(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Min(a, b)
}

// maxNaN is math.Max with NaN taking priority over infinities.
func maxNaN(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}

// Intersects reports whether both boxes are non-empty and share at least one point.
// Touching edges count as intersecting.
func (b BBox) Intersects(other BBox) bool {
	if !b.set || !other.set {
		return false
	}

	return b.MinX <= other.MaxX && other.MinX <= b.MaxX &&
		b.MinY <= other.MaxY && other.MinY <= b.MaxY
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b BBox) Contains(x, y float64) bool {
	return b.set && x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Width returns MaxX-MinX, or 0 for an empty box.
func (b BBox) Width() float64 {
	if !b.set {
		return 0
	}
	return b.MaxX - b.MinX
}

// Height returns MaxY-MinY, or 0 for an empty box.
func (b BBox) Height() float64 {
	if !b.set {
		return 0
	}
	return b.MaxY - b.MinY
}

// IsFinite reports whether the box is non-empty and all four values are finite.
func (b BBox) IsFinite() bool {
	if !b.set {
		return false
	}
	for _, v := range [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// String formats the box as "minx,miny,maxx,maxy", or "empty".
func (b BBox) String() string {
	if !b.set {
		return "empty"
	}

	buf := make([]byte, 0, 64)
	buf = strconv.AppendFloat(buf, b.MinX, 'g', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, b.MinY, 'g', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, b.MaxX, 'g', -1, 64)
	buf = append(buf, ',')
	buf = strconv.AppendFloat(buf, b.MaxY, 'g', -1, 64)
	return string(buf)
}

// ParseBBox parses "minx,miny,maxx,maxy". Swapped corners are normalized.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want 4 comma-separated values, got %d", s, len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}

	var b BBox
	b.Fold(v[0], v[1])
	b.Fold(v[2], v[3])
	return b, nil
}
