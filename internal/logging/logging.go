// Package logging builds the process logger.
//
// Output always goes to stderr because stdout carries the MCP protocol. When
// a file path is configured, entries are also written to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string

	// File, when set, receives a rotated copy of every entry.
	File string

	// Caller adds the calling file, line and function to each entry.
	Caller bool

	// Output overrides stderr. Used by tests.
	Output io.Writer
}

// New returns a logger configured from opts.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(opts.Caller)
	logger.SetFormatter(&formatter.Formatter{
		NoColors:              true,
		TimestampFormat:       "02 Jan 06 - 15:04:05",
		HideKeys:              false,
		CallerFirst:           true,
		CustomCallerFormatter: callerFormatter,
	})
	return logger, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func callerFormatter(f *runtime.Frame) string {
	s := strings.Split(f.Function, ".")
	return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
}
