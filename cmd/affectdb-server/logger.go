package main

import (
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel is the minimum severity the server writes.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// parseLogLevel maps a case-insensitive name to a LogLevel, defaulting to info.
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger is a leveled logger with [LEVEL] prefixes.
type Logger struct {
	level LogLevel
	out   *log.Logger
}

// NewLogger writes to stderr at the given level.
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo writes to w at the given level.
func NewLoggerTo(w io.Writer, level string) *Logger {
	return &Logger{
		level: parseLogLevel(level),
		out:   log.New(w, "", log.LstdFlags),
	}
}

func (l *Logger) logf(level LogLevel, tag, format string, v ...any) {
	if level < l.level {
		return
	}
	l.out.Printf("["+tag+"] "+format, v...)
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LogLevelDebug, "DEBUG", format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LogLevelInfo, "INFO", format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LogLevelWarn, "WARN", format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LogLevelError, "ERROR", format, v...) }

// Fatalf logs regardless of level and exits.
func (l *Logger) Fatalf(format string, v ...any) {
	l.out.Fatalf("[FATAL] "+format, v...)
}
