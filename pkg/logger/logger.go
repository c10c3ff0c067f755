// Package logger provides a small structured JSON logger.
package logger

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Logger is the logging surface services and handlers depend on.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type level int

const (
	levelInfo level = iota
	levelWarn
	levelError
	levelFatal
)

func (l level) String() string {
	switch l {
	case levelWarn:
		return "warn"
	case levelError:
		return "error"
	case levelFatal:
		return "fatal"
	default:
		return "info"
	}
}

func parseLevel(s string) level {
	switch s {
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

type jsonLogger struct {
	service string
	min     level
	out     io.Writer
	exit    func(int)
}

// New returns a Logger writing one JSON object per line to stdout. The
// minimum emitted level comes from LOG_LEVEL (info|warn|error), defaulting
// to info.
func New(service string) Logger {
	return &jsonLogger{
		service: service,
		min:     parseLevel(os.Getenv("LOG_LEVEL")),
		out:     os.Stdout,
		exit:    os.Exit,
	}
}

func (l *jsonLogger) log(lvl level, message string, fields map[string]interface{}) {
	if lvl < l.min {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     lvl.String(),
		"service":   l.service,
		"message":   message,
	}
	for k, v := range fields {
		entry[k] = v
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.out.Write(append(line, '\n'))
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.log(levelInfo, message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.log(levelWarn, message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.log(levelError, message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.log(levelFatal, message, fields)
	l.exit(1)
}

// NewNop returns a Logger that discards everything; used in tests.
func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
