// Package logger provides leveled logging for the whole process. The
// package-level functions are safe to call before Init; they simply
// drop messages until a logger exists, which keeps library code and
// tests free of logging setup.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging severity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger is a leveled wrapper around the standard library logger.
type Logger struct {
	level Level
	out   *log.Logger
}

var defaultLogger *Logger

// Init installs the default logger. format "text" adds caller
// file:line to each entry; anything else keeps the compact form.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level: ParseLevel(level),
		out:   log.New(os.Stderr, "", flags),
	}
}

// SetOutput redirects the default logger's output. Used by tests.
func SetOutput(w io.Writer) {
	if defaultLogger != nil {
		defaultLogger.out.SetOutput(w)
	}
}

func emit(l Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	msg := fmt.Sprintf("["+l.String()+"] "+format, args...)
	_ = defaultLogger.out.Output(3, msg)
}

func Debug(format string, args ...interface{}) { emit(DebugLevel, format, args...) }

func Info(format string, args ...interface{}) { emit(InfoLevel, format, args...) }

func Warn(format string, args ...interface{}) { emit(WarnLevel, format, args...) }

func Error(format string, args ...interface{}) { emit(ErrorLevel, format, args...) }

// Fatal logs unconditionally and exits.
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.out.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
