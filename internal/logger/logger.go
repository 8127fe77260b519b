// Package logger is a small leveled wrapper around the standard log package.
// Messages below the configured level are dropped; everything else is written
// through log.Printf with a level prefix.
package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level orders log severities; smaller is more verbose.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel maps DEBUG, INFO, WARN/WARNING and ERROR (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel sets the global minimum level.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// SetLogLevel parses s and sets the global level. Unknown values fall back
// to INFO and are reported as a warning.
func SetLogLevel(s string) {
	l, err := ParseLevel(s)
	SetLevel(l)
	if err != nil {
		Warnf("%v; defaulting to INFO", err)
	}
}

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool {
	return Level(current.Load()) <= l
}

func Debugf(format string, v ...any) {
	if Enabled(LevelDebug) {
		log.Printf("DEBUG: "+format, v...)
	}
}

func Infof(format string, v ...any) {
	if Enabled(LevelInfo) {
		log.Printf("INFO: "+format, v...)
	}
}

func Warnf(format string, v ...any) {
	if Enabled(LevelWarn) {
		log.Printf("WARN: "+format, v...)
	}
}

func Errorf(format string, v ...any) {
	if Enabled(LevelError) {
		log.Printf("ERROR: "+format, v...)
	}
}

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	log.Fatalf("FATAL: "+format, v...)
}
