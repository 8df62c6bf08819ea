package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFormat represents the logging format type
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// UnmarshalText implements encoding.TextUnmarshaler for type-safe config parsing
func (f *LogFormat) UnmarshalText(text []byte) error {
	value := LogFormat(strings.ToLower(strings.TrimSpace(string(text))))
	switch value {
	case "":
		*f = FormatText
		return nil
	case FormatText, FormatJSON:
		*f = value
		return nil
	default:
		return fmt.Errorf("invalid log format %q, must be %q or %q", string(text), FormatText, FormatJSON)
	}
}

// NewLogger configures the global logrus logger and returns it.
// Both binaries are one-shot, so every component shares the same logger.
func NewLogger(format LogFormat, level string) *logrus.Logger {
	return configure(logrus.StandardLogger(), os.Stderr, format, level)
}

// NewDiscardLogger returns an isolated logger that writes nowhere, for tests.
func NewDiscardLogger() *logrus.Logger {
	return configure(logrus.New(), io.Discard, FormatText, "debug")
}

func configure(logger *logrus.Logger, out io.Writer, format LogFormat, level string) *logrus.Logger {
	if format == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "_msg",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}
