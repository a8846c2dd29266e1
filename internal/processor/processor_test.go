package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/geobbox/internal/config"
	"github.com/woozymasta/geobbox/internal/geo"
	"github.com/woozymasta/geobbox/internal/index"

	"golang.org/x/image/webp"
)

func writeDataset(t *testing.T, dir string, n int) config.Dataset {
	t.Helper()

	var b strings.Builder
	b.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"type":"Feature","properties":{"i":%d},"geometry":{"type":"Point","coordinates":[%d,%d]}}`,
			i, i%10, i/10)
	}
	b.WriteString("]}")

	path := filepath.Join(dir, "points.geojson")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return config.Dataset{Name: "points", Path: path}
}

func TestProcessDataset(t *testing.T) {
	dir := t.TempDir()
	ds := writeDataset(t, dir, 100)
	opts := Options{DataDir: filepath.Join(dir, "data"), Workers: 3, PreviewSize: 32, NoPreview: true}

	res, err := ProcessDataset(ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fresh || res.Stats.Features != 100 || res.Index.Len() != 100 {
		t.Fatalf("first run: fresh=%v stats=%+v", res.Fresh, res.Stats)
	}
	if res.Index.Bounds() != geo.NewBBox(0, 0, 9, 9) {
		t.Errorf("bounds = %v", res.Index.Bounds())
	}

	idx, h, err := index.LoadFile(ds.IndexFile(opts.DataDir))
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 100 || h.Source != ds.Path {
		t.Errorf("saved index: len=%d header=%+v", idx.Len(), h)
	}
	if _, err := os.Stat(ds.PreviewFile(opts.DataDir)); !os.IsNotExist(err) {
		t.Errorf("preview written despite NoPreview: %v", err)
	}

	res, err = ProcessDataset(ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fresh || res.Index.Len() != 100 {
		t.Errorf("second run: fresh=%v len=%d", res.Fresh, res.Index.Len())
	}

	opts.Force = true
	res, err = ProcessDataset(ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fresh {
		t.Error("forced run reused the index")
	}
}

func TestProcessDatasetRebuildsStaleIndex(t *testing.T) {
	dir := t.TempDir()
	ds := writeDataset(t, dir, 10)
	opts := Options{DataDir: dir, Workers: 1, NoPreview: true}

	if _, err := ProcessDataset(ds, opts); err != nil {
		t.Fatal(err)
	}

	writeDataset(t, dir, 20)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(ds.Path, future, future); err != nil {
		t.Fatal(err)
	}

	res, err := ProcessDataset(ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fresh || res.Index.Len() != 20 {
		t.Errorf("fresh=%v len=%d, want rebuilt index of 20", res.Fresh, res.Index.Len())
	}
}

func TestProcessDatasetMissingSource(t *testing.T) {
	_, err := ProcessDataset(config.Dataset{Name: "x", Path: filepath.Join(t.TempDir(), "nope.geojson")}, Options{})
	if err == nil {
		t.Fatal("no error for missing source")
	}
}

func TestRenderCoverage(t *testing.T) {
	entries := []index.Entry{
		{Offset: 1, Box: geo.NewBBox(0, 0, 1, 1)},
		{Offset: 2, Box: geo.NewBBox(9, 9, 10, 10)},
		{Offset: 3},
	}
	img := RenderCoverage(entries, geo.NewBBox(0, 0, 10, 10), 64)

	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("bounds = %v", img.Bounds())
	}

	alpha := func(x, y int) uint8 { return img.RGBAAt(x, y).A }

	if a := alpha(2, 61); a == 0 {
		t.Error("south-west box not drawn")
	}
	if a := alpha(61, 2); a == 0 {
		t.Error("north-east box not drawn")
	}
	if a := alpha(2, 2); a != 0 {
		t.Errorf("north-west corner alpha = %d, want 0", a)
	}
	if a := alpha(32, 32); a != 0 {
		t.Errorf("center alpha = %d, want 0", a)
	}
}

func TestRenderCoverageDegenerate(t *testing.T) {
	point := geo.NewBBox(5, 5, 5, 5)
	img := RenderCoverage([]index.Entry{{Box: point}}, point, 16)

	drawn := false
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if img.RGBAAt(x, y).A != 0 {
				drawn = true
			}
		}
	}
	if !drawn {
		t.Error("single point dataset renders blank")
	}

	blank := RenderCoverage(nil, geo.EmptyBBox(), 8)
	if blank.Bounds().Dx() != 8 || blank.RGBAAt(4, 4).A != 0 {
		t.Error("empty dataset is not a blank image")
	}
}

func TestSavePreview(t *testing.T) {
	img := RenderCoverage(
		[]index.Entry{{Box: geo.NewBBox(-10, -10, 10, 10)}},
		geo.NewBBox(-20, -20, 20, 20), 48)

	path := filepath.Join(t.TempDir(), "a", "coverage.webp")
	if err := SavePreview(path, img); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	decoded, err := webp.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds().Dx() != 48 || decoded.Bounds().Dy() != 48 {
		t.Errorf("decoded size = %v", decoded.Bounds())
	}
}
