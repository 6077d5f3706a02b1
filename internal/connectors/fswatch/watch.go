// Package fswatch watches a notes directory tree and reports debounced changes.
package fswatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/recall/internal/logger"
)

// DefaultDebounce is how long the watcher waits for quiet before reporting.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to files under a root directory.
type Watcher struct {
	root     string
	match    func(path string) bool
	debounce time.Duration
}

// New creates a watcher for files under root accepted by match.
// A nil match accepts every file.
func New(root string, match func(path string) bool) *Watcher {
	if match == nil {
		match = func(string) bool { return true }
	}
	return &Watcher{root: root, match: match, debounce: DefaultDebounce}
}

// WithDebounce sets the quiet period before onChange runs.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run blocks until ctx is cancelled, calling onChange once per burst of
// relevant events. Directories created later are watched as they appear.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !hidden(event.Name) {
					if err := w.addTree(fsw, event.Name); err != nil {
						logger.Warn("Failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if !w.Relevant(event) {
				continue
			}
			logger.Debug("Notes changed: %s %s", event.Op, event.Name)
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// Relevant reports whether event changes a watched file. Chmod-only events,
// hidden paths and files rejected by the match function are ignored.
func (w *Watcher) Relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if hidden(event.Name) {
		return false
	}
	return w.match(event.Name)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// hidden reports whether the base name starts with a dot.
func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// HasExt returns a match function accepting files with the given extension,
// compared case-insensitively.
func HasExt(ext string) func(string) bool {
	return func(path string) bool {
		return strings.EqualFold(filepath.Ext(path), ext)
	}
}
