// Package geo handles bounding boxes and the GeoJSON envelopes built around indexed features.
package geo

import (
	"github.com/goccy/go-json"
)

// GeoJSONFeatureCollection represents a collection of geographic features.
// Features are carried as raw JSON, exactly as re-read from the source file.
type GeoJSONFeatureCollection struct {
	Type     string            `json:"type" yaml:"type"`
	BBox     []float64         `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Features []json.RawMessage `json:"features" yaml:"features"`
}

// NewFeatureCollection wraps raw features into a FeatureCollection.
// The "bbox" member is set only when box is non-empty and finite.
func NewFeatureCollection(features []json.RawMessage, box BBox) GeoJSONFeatureCollection {
	if features == nil {
		features = []json.RawMessage{}
	}

	fc := GeoJSONFeatureCollection{Type: "FeatureCollection", Features: features}
	if box.IsFinite() {
		fc.BBox = []float64{box.MinX, box.MinY, box.MaxX, box.MaxY}
	}

	return fc
}
