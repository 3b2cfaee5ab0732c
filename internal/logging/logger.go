// Package logging builds the process-wide zerolog.Logger: a colorized
// console writer for interactive use, falling back to structured JSON
// when the process isn't attached to a terminal or LOG_FORMAT=json is
// set explicitly.
package logging

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds a logger at level (parsed via zerolog.ParseLevel, defaulting
// to info on an unrecognized value) writing in format ("console" or
// "json").
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writer = os.Stdout

	useConsole := format == "console" && isatty.IsTerminal(writer.Fd())
	if !useConsole {
		return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{Out: colorable.NewColorable(writer), TimeFormat: "15:04:05"}
	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}
