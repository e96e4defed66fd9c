// Package watch reports batches of file changes below a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must stay quiet before a batch is
// delivered.
const DefaultDebounce = 100 * time.Millisecond

// Change is one changed path in a batch.
type Change struct {
	Path string
	Op   fsnotify.Op
}

// Removed reports whether the path no longer exists.
func (c Change) Removed() bool {
	return c.Op.Has(fsnotify.Remove) || c.Op.Has(fsnotify.Rename)
}

// Watcher watches a directory and every directory below it, skipping
// hidden directories.
type Watcher struct {
	fs       *fsnotify.Watcher
	root     string
	debounce time.Duration
	filter   func(path string) bool
}

// Options configures a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce
	Debounce time.Duration

	// Filter selects relevant files; nil accepts all
	Filter func(path string) bool
}

// New starts watching root.
func New(root string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Watcher{fs: fw, root: root, debounce: opts.Debounce, filter: opts.Filter}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to setup watcher: %w", err)
	}

	return w, nil
}

// Extension returns a filter accepting files with any of exts.
func Extension(exts ...string) func(string) bool {
	return func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Run delivers batches of changes to handle until ctx is done. handle is
// called from Run's goroutine, so batches never overlap.
func (w *Watcher) Run(ctx context.Context, handle func([]Change)) error {
	defer w.fs.Close()

	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	var pending []fsnotify.Event

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Printf("⚠️  Failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}

			if w.filter != nil && !w.filter(event.Name) {
				continue
			}

			pending = append(pending, event)
			debounce.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Println("Watcher error:", err)

		case <-debounce.C:
			events := pending
			pending = nil

			if changes := coalesce(events); len(changes) > 0 {
				handle(changes)
			}
		}
	}
}

// coalesce merges events per path, keeping the order in which paths were
// first seen.
func coalesce(events []fsnotify.Event) []Change {
	var changes []Change
	index := make(map[string]int)

	for _, e := range events {
		name := filepath.Clean(e.Name)
		if i, ok := index[name]; ok {
			changes[i].Op |= e.Op
			// the latest event decides whether the file still exists
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
				changes[i].Op &^= fsnotify.Remove | fsnotify.Rename
			}
			continue
		}
		index[name] = len(changes)
		changes = append(changes, Change{Path: name, Op: e.Op})
	}

	return changes
}
