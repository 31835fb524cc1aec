// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// FileName is the log file inside the data directory.
	FileName = "viberails.log"

	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	maxAgeDays        = 30
)

// Options selects the log destination and level.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Console writes styled records to Stderr instead of the log file.
	Console bool
	// Stderr receives console output. Nil means os.Stderr.
	Stderr io.Writer
	// Dir holds the rotating log file. Empty disables file logging.
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger for opts and a Closer releasing its file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	if opts.Console {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return slog.New(log.NewWithOptions(w, log.Options{
			Level:           level,
			Prefix:          "viberails",
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		})), nopCloser{}, nil
	}

	if opts.Dir == "" {
		return Discard(), nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, FileName),
		MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     maxAgeDays,
	}
	handler := log.NewWithOptions(rotator, log.Options{
		Level:           level,
		Formatter:       log.LogfmtFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	return slog.New(handler).With("pid", os.Getpid()), rotator, nil
}

// ParseLevel maps a config level name to a charm log level.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
