package index

import (
	"fmt"
	"io"
	"math"

	"github.com/goccy/go-json"
)

// ReadFeature decodes the JSON object starting at off and returns its raw bytes.
func ReadFeature(ra io.ReaderAt, off int64) (json.RawMessage, error) {
	dec := json.NewDecoder(io.NewSectionReader(ra, off, math.MaxInt64-off))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("read feature at %d: %w", off, err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("read feature at %d: not an object", off)
	}

	return raw, nil
}
