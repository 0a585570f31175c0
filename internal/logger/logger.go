package logger

import (
	"io"
	"log"
	"sync"

	"github.com/Alexander-D-Karpov/blockfs/internal/config"
)

var (
	level config.LogLevel = config.LogLevelInfo
	mu    sync.RWMutex
	std   = log.Default()
)

func SetLevel(l config.LogLevel) {
	mu.Lock()
	level = l
	mu.Unlock()
}

func GetLevel() config.LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects every level to w. Tests use it to capture or silence output.
func SetOutput(w io.Writer) {
	mu.Lock()
	std = log.New(w, "", log.LstdFlags)
	mu.Unlock()
}

func output(prefix, format string, args ...interface{}) {
	mu.RLock()
	l := std
	mu.RUnlock()
	l.Printf(prefix+format, args...)
}

func Debug(format string, args ...interface{}) {
	if GetLevel() <= config.LogLevelDebug {
		output("[DEBUG] ", format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if GetLevel() <= config.LogLevelInfo {
		output("[INFO] ", format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if GetLevel() <= config.LogLevelWarn {
		output("[WARN] ", format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if GetLevel() <= config.LogLevelError {
		output("[ERROR] ", format, args...)
	}
}
