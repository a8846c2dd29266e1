package main

import (
	"os"
	"time"

	"github.com/woozymasta/geobbox/internal/config"
	"github.com/woozymasta/geobbox/internal/logger"
	"github.com/woozymasta/geobbox/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Limit       []string `short:"l" long:"limit"        env:"LIMIT_NAMES"  description:"Limit processing to specific dataset names or aliases"`
	Workers     int      `short:"w" long:"workers"      env:"WORKERS"      description:"Extraction workers per dataset, overrides config"`
	PreviewSize int      `short:"s" long:"preview-size" env:"PREVIEW_SIZE" description:"Coverage preview size in pixels, overrides config"`
	Force       bool     `short:"f" long:"force"        description:"Rebuild indexes even if they are up to date"`
	NoPreview   bool     `short:"n" long:"no-preview"   description:"Do not render coverage previews"`
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

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.PreviewSize > 0 {
		cfg.PreviewSize = opts.PreviewSize
	}

	// Filter datasets if limit is set
	datasetsToProcess := cfg.Datasets
	if len(opts.Limit) > 0 {
		datasetsToProcess = make([]config.Dataset, 0)
		seen := make(map[string]bool)

		for _, limitName := range opts.Limit {
			ds, ok := cfg.Lookup(limitName)
			if !ok {
				log.Error().
					Str("name", limitName).
					Msg("Dataset specified in --limit not found in configuration")
				continue
			}
			if seen[ds.Name] {
				continue
			}
			seen[ds.Name] = true

			datasetsToProcess = append(datasetsToProcess, ds)
		}
	}

	log.Info().
		Int("datasets_total", len(cfg.Datasets)).
		Int("datasets_queued", len(datasetsToProcess)).
		Bool("force", opts.Force).
		Msg("Starting indexer")

	start := time.Now()
	failed := 0
	for _, ds := range datasetsToProcess {
		workers := cfg.WorkersFor(ds)
		if opts.Workers > 0 {
			workers = opts.Workers
		}

		_, err := processor.ProcessDataset(ds, processor.Options{
			DataDir:     cfg.DataDir,
			Workers:     workers,
			PreviewSize: cfg.PreviewSize,
			Force:       opts.Force,
			NoPreview:   opts.NoPreview,
		})
		if err != nil {
			failed++
			log.Error().Err(err).Str("dataset", ds.Name).Msg("Failed to process dataset")
		}
	}

	if failed > 0 {
		log.Fatal().
			Int("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("Indexer finished with errors")
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Indexer finished successfully")
}
