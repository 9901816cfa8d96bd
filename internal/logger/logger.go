package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"github.com/rs/zerolog"
)

var log = New(os.Stdout, WarnLevel, false)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zlog struct {
	zl zerolog.Logger
}

// New builds a Logger writing to w. Service output drops timestamps since
// journald adds its own.
func New(w io.Writer, level LogLevel, isService bool) Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    isService,
	}

	if isService {
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	zl := zerolog.New(output).Level(zerolog.Level(level)).With().Timestamp().Logger()

	return &zlog{zl: zl}
}

// NewJSON builds a Logger emitting one JSON object per line.
func NewJSON(w io.Writer, level LogLevel) Logger {
	return &zlog{zl: zerolog.New(w).Level(zerolog.Level(level)).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zlog{zl: zerolog.Nop()}
}

func (l *zlog) Debug() *LogEvent {
	return &LogEvent{l.zl.Debug()}
}

func (l *zlog) Info() *LogEvent {
	return &LogEvent{l.zl.Info()}
}

func (l *zlog) Warn() *LogEvent {
	return &LogEvent{l.zl.Warn()}
}

func (l *zlog) Error() *LogEvent {
	return &LogEvent{l.zl.Error()}
}

func (l *zlog) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{l.zl.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

func (l *zlog) With(component string) Logger {
	return &zlog{zl: l.zl.With().Str("component", component).Logger()}
}

// Init initializes the default logger
func Init(level LogLevel, isService bool) {
	log = New(os.Stdout, level, isService)
}

// Default returns the process-wide logger set by Init.
func Default() Logger {
	return log
}

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, s)
	}
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return log.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return log.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return log.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return log.Error()
}
