package extract

import (
	"fmt"
	"strconv"
	"strings"
)

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// generateCollection builds a FeatureCollection cycling through all four
// coordinate shapes, with nested properties in between.
func generateCollection(n int) string {
	var b strings.Builder
	b.WriteString(`{"type":"FeatureCollection","features":[`)

	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",\n")
		}

		x, y := float64(i%37)-18.5, float64(i%11)*1.25
		var kind, coords string
		switch i % 4 {
		case 0:
			kind = "Point"
			coords = fmt.Sprintf("[%g,%g]", x, y)
		case 1:
			kind = "LineString"
			coords = fmt.Sprintf("[[%g,%g],[%g,%g,100]]", x, y, x+1, y+2)
		case 2:
			kind = "Polygon"
			coords = fmt.Sprintf("[[[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]", x, y, x+3, y, x+3, y-1, x, y)
		default:
			kind = "MultiPolygon"
			coords = fmt.Sprintf("[[[[%g,%g],[%g,%g],[%g,%g]]],[[[%g,%g],[%g,%g],[%g,%g]]]]",
				x, y, x+1, y, x, y, x-4, y+4, x-3, y+5, x-4, y+4)
		}

		fmt.Fprintf(&b, `{"type":"Feature","id":%d,"properties":{"name":"f%d","tags":{"k":"v"}},`+
			`"geometry":{"type":"%s","coordinates":%s}}`, i, i, kind, coords)
	}

	b.WriteString("]}")
	return b.String()
}
