// Package logger configures the global zerolog logger from command line options.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger holds logging options, embedded into each binary as a go-flags group.
type Logger struct {
	Level   string `long:"log-level"    env:"LOG_LEVEL"    description:"Log level"  default:"info"    choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	Format  string `long:"log-format"   env:"LOG_FORMAT"   description:"Log format" default:"console" choice:"console" choice:"json"`
	NoColor bool   `long:"log-no-color" env:"LOG_NO_COLOR" description:"Disable colored console output"`
}

// Setup applies the options to the global logger. Logs go to stderr.
func (l Logger) Setup() {
	out := os.Stderr

	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if l.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.DateTime,
			NoColor:    l.NoColor || !isatty.IsTerminal(out.Fd()),
		}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
