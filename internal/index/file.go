package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/geobbox/internal/geo"

	"github.com/goccy/go-json"
)

// FormatVersion is written into every index file header.
const FormatVersion = 1

// Header is the first line of an index file.
type Header struct {
	Version    int    `json:"version"`
	Source     string `json:"source,omitempty"`
	SourceSize int64  `json:"source_size,omitempty"`
	Count      int    `json:"count"`
	Skipped    int    `json:"skipped"`
}

// ErrVersion is returned by Load for files written by another format version.
var ErrVersion = errors.New("unsupported index version")

// line is one entry of an index file. Empty boxes omit "b".
type line struct {
	Offset int64    `json:"o"`
	Box    []number `json:"b,omitempty"`
}

// number keeps NaN and infinities representable in JSON as strings.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("index coordinate %s: %w", b, err)
	}
	*n = number(f)
	return nil
}

// Save writes h and all entries of idx as JSON lines.
// Count is taken from idx.
func Save(w io.Writer, h Header, idx *Index) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	h.Version = FormatVersion
	h.Count = idx.Len()
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range idx.entries {
		l := line{Offset: e.Offset}
		if !e.Box.IsEmpty() {
			l.Box = []number{number(e.Box.MinX), number(e.Box.MinY), number(e.Box.MaxX), number(e.Box.MaxY)}
		}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("write entry at %d: %w", e.Offset, err)
		}
	}

	return bw.Flush()
}

// Load reads an index written by Save.
func Load(r io.Reader) (*Index, Header, error) {
	dec := json.NewDecoder(bufio.NewReader(r))

	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, h, fmt.Errorf("read header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, h, fmt.Errorf("%w %d", ErrVersion, h.Version)
	}

	if h.Count < 0 {
		return nil, h, fmt.Errorf("invalid entry count %d", h.Count)
	}

	entries := make([]Entry, 0, min(h.Count, 1<<20))
	last := int64(-1)
	for {
		var l line
		err := dec.Decode(&l)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, h, fmt.Errorf("read entry %d: %w", len(entries), err)
		}

		if l.Offset <= last {
			return nil, h, fmt.Errorf("entry %d: offset %d is not after %d", len(entries), l.Offset, last)
		}
		last = l.Offset

		e := Entry{Offset: l.Offset}
		switch len(l.Box) {
		case 0:
		case 4:
			e.Box = geo.NewBBox(float64(l.Box[0]), float64(l.Box[1]), float64(l.Box[2]), float64(l.Box[3]))
		default:
			return nil, h, fmt.Errorf("entry %d: bbox has %d values", len(entries), len(l.Box))
		}
		entries = append(entries, e)
	}

	if len(entries) != h.Count {
		return nil, h, fmt.Errorf("index truncated: header says %d entries, read %d", h.Count, len(entries))
	}

	return New(entries), h, nil
}

// SaveFile writes the index to path through a temporary file in the same
// directory, so readers never see a partial index.
func SaveFile(path string, h Header, idx *Index) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Save(tmp, h, idx); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// LoadFile reads an index file written by SaveFile.
func LoadFile(path string) (*Index, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer func() { _ = f.Close() }()

	idx, h, err := Load(f)
	if err != nil {
		return nil, h, fmt.Errorf("%s: %w", path, err)
	}

	return idx, h, nil
}
