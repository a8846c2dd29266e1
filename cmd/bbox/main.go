package main

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/woozymasta/geobbox/internal/extract"
	"github.com/woozymasta/geobbox/internal/geo"
	"github.com/woozymasta/geobbox/internal/logger"

	"github.com/goccy/go-json"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input     string `short:"i" long:"in"         description:"Input GeoJSON file path. Reads from stdin if empty"`
	Output    string `short:"o" long:"out"        description:"Output file path. Writes to stdout if empty"`
	Format    string `short:"f" long:"format"     description:"Output format" choice:"json" choice:"yaml" default:"json"`
	SkipEmpty bool   `short:"e" long:"skip-empty" description:"Omit features without coordinates"`
}

// record is one output line. Non-finite values are written as strings.
type record struct {
	Offset int64  `json:"offset" yaml:"offset"`
	Shape  string `json:"shape,omitempty" yaml:"shape,omitempty"`
	BBox   []any  `json:"bbox,omitempty" yaml:"bbox,omitempty,flow"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	// Read Input
	var in io.Reader = os.Stdin
	if opts.Input != "" {
		f, err := os.Open(opts.Input)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open input file")
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	// Write Output
	out := bufio.NewWriter(os.Stdout)
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer func() { _ = f.Close() }()
		out = bufio.NewWriter(f)
	}

	ex := extract.NewExtractor(in)
	count, err := run(ex, out, opts.Format, opts.SkipEmpty)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		log.Fatal().Err(err).Int("records", count).Msg("Extraction failed")
	}

	log.Info().
		Int("records", count).
		Int("skipped", ex.Skipped()).
		Str("format", opts.Format).
		Msg("Extraction finished")
}

// run streams records as JSON lines, or collects them into one YAML list.
func run(ex *extract.Extractor, w io.Writer, format string, skipEmpty bool) (int, error) {
	enc := json.NewEncoder(w)
	var all []record

	count := 0
	for rec, err := range ex.All() {
		if err != nil {
			return count, err
		}
		if skipEmpty && rec.Empty() {
			continue
		}

		r := record{Offset: rec.Offset, BBox: bboxValues(rec.Box)}
		if !rec.Empty() {
			r.Shape = ex.Shape().String()
		}
		count++

		if format == "yaml" {
			all = append(all, r)
			continue
		}
		if err := enc.Encode(r); err != nil {
			return count, err
		}
	}

	if format == "yaml" {
		data, err := yaml.Marshal(all)
		if err != nil {
			return count, err
		}
		_, err = w.Write(data)
		return count, err
	}

	return count, nil
}

func bboxValues(b geo.BBox) []any {
	if b.IsEmpty() {
		return nil
	}

	out := make([]any, 0, 4)
	for _, v := range [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
			continue
		}
		out = append(out, v)
	}
	return out
}
