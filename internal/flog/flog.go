package flog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Log levels, ordered from most to least verbose.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func init() {
	level.Store(LevelInfo)
}

// SetLevel sets the global log level by name: debug, info, warn, error.
// Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Store(LevelDebug)
	case "warn", "warning":
		level.Store(LevelWarn)
	case "error":
		level.Store(LevelError)
	default:
		level.Store(LevelInfo)
	}
}

func logf(l int32, tag, format string, args ...any) {
	if level.Load() > l {
		return
	}
	logger.Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { logf(LevelDebug, "DEBUG", format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, "INFO", format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, "WARN", format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, "ERROR", format, args...) }

// Fatalf logs at error level and exits the process.
func Fatalf(format string, args ...any) {
	logger.Output(3, "FATAL "+fmt.Sprintf(format, args...))
	os.Exit(1)
}
