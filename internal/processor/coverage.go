package processor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/woozymasta/geobbox/internal/geo"
	"github.com/woozymasta/geobbox/internal/index"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// supersample is the factor the preview is drawn at before downscaling.
const supersample = 2

var (
	coverageFill    = color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0x30}
	coverageOutline = color.NRGBA{R: 0x0d, G: 0x47, B: 0xa1, A: 0xff}
)

// RenderCoverage draws every finite entry box of a dataset into a size x size
// image, north up, keeping the aspect ratio of bounds.
func RenderCoverage(entries []index.Entry, bounds geo.BBox, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if size <= 0 || !bounds.IsFinite() {
		return dst
	}

	px := size * supersample
	canvas := image.NewRGBA(image.Rect(0, 0, px, px))

	extent := math.Max(bounds.Width(), bounds.Height())
	scale := 0.0
	if extent > 0 {
		scale = float64(px-1) / extent
	}
	// center the shorter side
	offX := (float64(px-1) - bounds.Width()*scale) / 2
	offY := (float64(px-1) - bounds.Height()*scale) / 2

	project := func(x, y float64) image.Point {
		return image.Point{
			X: int(math.Round(offX + (x-bounds.MinX)*scale)),
			Y: int(math.Round(offY + (bounds.MaxY-y)*scale)),
		}
	}

	fill := image.NewUniform(coverageFill)
	outline := image.NewUniform(coverageOutline)

	for _, e := range entries {
		if !e.Box.IsFinite() {
			continue
		}

		topLeft := project(e.Box.MinX, e.Box.MaxY)
		bottomRight := project(e.Box.MaxX, e.Box.MinY)
		r := image.Rectangle{Min: topLeft, Max: bottomRight.Add(image.Pt(1, 1))}

		if r.Dx() <= supersample || r.Dy() <= supersample {
			// points and thin lines become a visible dot or stroke
			draw.Draw(canvas, r.Inset(-1), outline, image.Point{}, draw.Over)
			continue
		}

		draw.Draw(canvas, r, fill, image.Point{}, draw.Over)
		for _, edge := range []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
			image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
			image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
		} {
			draw.Draw(canvas, edge, outline, image.Point{}, draw.Over)
		}
	}

	xdraw.CatmullRom.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Over, nil)
	return dst
}

// SavePreview encodes img as lossy WebP at path.
func SavePreview(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	if err := webp.Encode(f, img, &webp.Options{Lossless: false, Quality: 85}); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}

	return nil
}
