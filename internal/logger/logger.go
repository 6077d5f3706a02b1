// Package logger provides verbose logging for the Recall CLI.
// When verbose mode is enabled via the --verbose flag, messages about
// indexing, retrieval routing and chat are printed to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr

	// progressSteps is how many progress lines a bulk job prints at most.
	progressSteps = 10
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

func printf(prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	printf("[DEBUG] ", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	printf("[INFO] ", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
// Bulk jobs use it for items they skip.
func Warn(format string, args ...any) {
	printf("[WARN] ", format, args...)
}

// Progress reports bulk job progress if verbose mode is enabled.
// Only roughly every tenth step and the final step are printed.
func Progress(stage string, done, total int) {
	if total <= 0 || done < 0 {
		return
	}
	step := total / progressSteps
	if step < 1 {
		step = 1
	}
	if done != total && done%step != 0 {
		return
	}
	printf("[PROGRESS] ", "%s: %d/%d (%d%%)", stage, done, total, done*100/total)
}
