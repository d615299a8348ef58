// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch signals when the corpus file has been modified. It never
// rebuilds anything itself; consumers read Change values from a channel.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change reports that the watched file's modification time moved.
type Change struct {
	Path    string
	ModTime time.Time
}

// Watcher observes a single file. The parent directory is watched so that
// editors which replace the file by rename are still seen.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	last    time.Time
}

// New creates a watcher for path and records its current modification
// time. A file that does not exist yet is allowed; its first appearance
// counts as a change.
func New(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{path: abs, logger: logger, watcher: fw}
	if info, err := os.Stat(abs); err == nil {
		w.last = info.ModTime()
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Watch starts delivering changes until ctx is done, at which point the
// channel is closed. Sends block until the consumer receives, so a slow
// consumer delays detection but never loses the latest modification time.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	changes := make(chan Change)

	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				change, ok := w.check()
				if !ok {
					continue
				}
				w.logger.Info("corpus modified", "path", w.path, "mtime", change.ModTime)

				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "path", w.path, "error", err)
			}
		}
	}()

	return changes, nil
}

// check stats the file and reports whether its modification time differs
// from the last one observed.
func (w *Watcher) check() (Change, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		return Change{}, false
	}
	if info.ModTime().Equal(w.last) {
		return Change{}, false
	}
	w.last = info.ModTime()
	return Change{Path: w.path, ModTime: w.last}, true
}

// Close releases the underlying OS watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
