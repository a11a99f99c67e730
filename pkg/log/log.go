package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

type Level string

const (
	FatalLevel    Level = "fatal"
	ErrorLevel    Level = "error"
	WarningLevel  Level = "warn"
	InfoLevel     Level = "info"
	DebugLevel    Level = "debug"
	TraceLevel    Level = "trace"
	DisabledLevel Level = "disabled"
)

var severity = map[Level]int{
	TraceLevel:    5,
	DebugLevel:    4,
	InfoLevel:     3,
	WarningLevel:  2,
	ErrorLevel:    1,
	FatalLevel:    0,
	DisabledLevel: -1,
}

type sink struct {
	out   *log.Logger
	level Level
}

func (s *sink) println(level Level, args ...any) {
	if severity[level] > severity[s.level] {
		return
	}
	ts := time.Now().Local()
	prefix := []any{
		fmt.Sprintf("%s.%03d", ts.Format("2006-01-02 15:04:05"), ts.Nanosecond()/1000000),
		fmt.Sprintf("- %5s -", level),
	}
	s.out.Println(append(prefix, args...)...)
}

func (s *sink) printf(level Level, format string, args ...any) {
	if severity[level] > severity[s.level] {
		return
	}
	s.println(level, fmt.Sprintf(format, args...))
}

var (
	stdout = &sink{log.New(os.Stdout, "", 0), InfoLevel}
	stderr = &sink{log.New(os.Stderr, "", 0), InfoLevel}
)

// Valid returns true if the given level is a known log level.
func Valid(level Level) bool {
	_, ok := severity[level]
	return ok
}

// SetLevel sets the log level of both the stdout and stderr sinks.
func SetLevel(level Level) error {
	if !Valid(level) {
		return fmt.Errorf("no such log level: %s", level)
	}
	stdout.level = level
	stderr.level = level
	return nil
}

func Trace(args ...any) {
	stdout.println(TraceLevel, args...)
}

func Debug(args ...any) {
	stdout.println(DebugLevel, args...)
}

func Info(args ...any) {
	stdout.println(InfoLevel, args...)
}

func Warn(args ...any) {
	stderr.println(WarningLevel, args...)
}

func Error(args ...any) {
	stderr.println(ErrorLevel, args...)
}

func Fatal(args ...any) {
	stderr.println(FatalLevel, args...)
	os.Exit(1)
}

func Tracef(format string, args ...any) {
	stdout.printf(TraceLevel, format, args...)
}

func Debugf(format string, args ...any) {
	stdout.printf(DebugLevel, format, args...)
}

func Infof(format string, args ...any) {
	stdout.printf(InfoLevel, format, args...)
}

func Warnf(format string, args ...any) {
	stderr.printf(WarningLevel, format, args...)
}

func Errorf(format string, args ...any) {
	stderr.printf(ErrorLevel, format, args...)
}

func Fatalf(format string, args ...any) {
	stderr.printf(FatalLevel, format, args...)
	os.Exit(1)
}

// NewLogger returns a standard library logger routed through this package.
func NewLogger() *log.Logger {
	return log.New(NewLogWriter(DebugLevel), "", 0)
}

type writeFunc func([]byte) (int, error)

func (fn writeFunc) Write(data []byte) (int, error) {
	return fn(data)
}

// NewLogWriter returns an io.Writer that logs every write at the given level.
func NewLogWriter(level Level) io.Writer {
	return writeFunc(func(data []byte) (int, error) {
		switch level {
		case WarningLevel, ErrorLevel, FatalLevel:
			stderr.printf(level, "%s", data)
		default:
			stdout.printf(level, "%s", data)
		}
		return len(data), nil
	})
}
