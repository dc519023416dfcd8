// Package logger provides verbose logging for the knowledge engine.
// When verbose mode is enabled, the harvester and the search pipeline
// print stage headers and per-step diagnostics to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	levelDebug = "[DEBUG] "
	levelInfo  = "[INFO] "
	levelWarn  = "[WARN] "
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// logf prints one level-prefixed line when verbose mode is enabled.
func logf(level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, level+format+"\n", args...)
	}
}

// Debug prints a diagnostic message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(levelDebug, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(levelInfo, format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	logf(levelWarn, format, args...)
}

// Section prints a stage header if verbose mode is enabled. The services
// open one per operation (harvest, related ranking, semantic search) so
// verbose output groups by pipeline stage.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
