// Package nlog is the structured logger every nitrite package logs
// through: a global zerolog.Logger plus Config/Init and a handful of
// component helpers (WithMap, WithCollection, WithMigration) that attach
// the document-database entities actually named in this codebase's log
// lines.
package nlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// A usable default so library code can log before the embedding
	// application calls Init.
	Init(Config{Level: InfoLevel})
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithMap creates a child logger with a map_name field.
func WithMap(name string) zerolog.Logger {
	return Logger.With().Str("map_name", name).Logger()
}

// WithCollection creates a child logger with a collection field.
func WithCollection(name string) zerolog.Logger {
	return Logger.With().Str("collection", name).Logger()
}

// WithMigration creates a child logger with from/to version fields.
func WithMigration(from, to int) zerolog.Logger {
	return Logger.With().Int("from_version", from).Int("to_version", to).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	Logger.Error().Msg(fmt.Sprintf(format, args...))
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }
