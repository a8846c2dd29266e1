// Package index keeps per-feature bounding boxes of a source file in an
// R-tree, persists them next to the source and re-reads single features by
// offset.
package index

import (
	"sort"

	"github.com/woozymasta/geobbox/internal/extract"
	"github.com/woozymasta/geobbox/internal/geo"

	"github.com/dhconnelly/rtreego"
)

// tolerance pads every rectangle handed to the R-tree: rtreego rejects
// zero-length sides and does not count touching rectangles as intersecting.
// Results are filtered with exact box tests afterwards.
const tolerance = 1e-9

// Entry is one indexed feature: the offset of its opening brace in the
// source file and its bounding box.
type Entry struct {
	Offset int64
	Box    geo.BBox
}

// Bounds implements rtreego.Spatial.
func (e Entry) Bounds() rtreego.Rect {
	return toRect(e.Box, tolerance)
}

func toRect(b geo.BBox, pad float64) rtreego.Rect {
	point := rtreego.Point{b.MinX - pad, b.MinY - pad}
	lengths := []float64{b.Width() + 2*pad, b.Height() + 2*pad}

	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// Index holds all entries of a source in offset order. Entries with empty or
// non-finite boxes are kept but never returned by Search.
type Index struct {
	entries []Entry
	rtree   *rtreego.Rtree
	bounds  geo.BBox
}

// New builds an index from entries sorted by offset.
func New(entries []Entry) *Index {
	searchable := make([]rtreego.Spatial, 0, len(entries))
	var bounds geo.BBox

	for _, e := range entries {
		if !e.Box.IsFinite() {
			continue
		}
		searchable = append(searchable, e)
		bounds.Merge(e.Box)
	}

	// 2D, min=25 children, max=50 children
	return &Index{
		entries: entries,
		rtree:   rtreego.NewTree(2, 25, 50, searchable...),
		bounds:  bounds,
	}
}

func fromRecord(rec extract.Record) Entry {
	return Entry{Offset: rec.Offset, Box: rec.Box}
}

// Search returns entries whose boxes intersect box, in offset order.
// A positive limit caps the number of results.
func (idx *Index) Search(box geo.BBox, limit int) []Entry {
	if !box.IsFinite() || idx.rtree.Size() == 0 {
		return nil
	}

	spatials := idx.rtree.SearchIntersect(toRect(box, 2*tolerance))

	result := make([]Entry, 0, len(spatials))
	for _, spatial := range spatials {
		entry := spatial.(Entry)
		if !entry.Box.Intersects(box) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Offset < result[j].Offset
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result
}

// Lookup returns the entry starting at offset, if any.
func (idx *Index) Lookup(offset int64) (Entry, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Offset >= offset
	})
	if i < len(idx.entries) && idx.entries[i].Offset == offset {
		return idx.entries[i], true
	}
	return Entry{}, false
}

// Entries returns all entries in offset order. The slice must not be modified.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Len returns the number of entries, searchable or not.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Searchable returns the number of entries with a finite box.
func (idx *Index) Searchable() int {
	return idx.rtree.Size()
}

// Bounds returns the union of all finite entry boxes.
func (idx *Index) Bounds() geo.BBox {
	return idx.bounds
}
