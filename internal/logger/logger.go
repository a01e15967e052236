package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level     string // debug, info, warn, error
	File      string // log file path; empty disables the file sink
	Console   bool   // enable console output
	Pretty    bool   // human-readable console format
	Redaction bool   // scrub credentials from output
	MaxSize   int    // max file size in MB before rotation
	MaxAge    int    // days to keep rotated files
	Compress  bool   // gzip rotated files
}

// Logger owns the configured sinks. Closing it flushes and releases the
// file sink; the global zerolog logger keeps working against stderr after.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// New builds the process logger and installs it as the global zerolog
// logger.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, console)
	}

	var closer io.Closer
	if cfg.File != "" {
		rotating, err := NewRotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxAge, cfg.Compress)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	if cfg.Redaction {
		writer = NewRedactor().Wrap(writer)
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	return &Logger{logger: logger, closer: closer}, nil
}

// GetZerolog returns the configured zerolog.Logger.
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
