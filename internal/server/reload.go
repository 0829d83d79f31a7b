package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader calls reload after any of a set of files changes. It watches the
// parent directories so editors that replace a file by rename are seen too.
type Reloader struct {
	watcher  *fsnotify.Watcher
	reload   func() error
	paths    []string
	files    map[string]bool // cleaned absolute paths
	debounce time.Duration
}

// NewReloader watches the given files. Empty and missing paths are skipped.
func NewReloader(reload func() error, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		watcher:  watcher,
		reload:   reload,
		files:    make(map[string]bool),
		debounce: 500 * time.Millisecond,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if dir := filepath.Dir(abs); !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
			}
			dirs[dir] = true
		}
		r.files[abs] = true
		r.paths = append(r.paths, p)
	}
	return r, nil
}

// Paths returns the files actually being watched.
func (r *Reloader) Paths() []string { return r.paths }

// Run blocks until ctx is cancelled. Reloads run on this goroutine, one at
// a time, once writes have been quiet for the debounce interval.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if err := r.reload(); err != nil {
				fmt.Fprintf(os.Stderr, "server: hot-reload failed: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "server: profiles reloaded\n")
			}

		case ev, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.files[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(r.debounce)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "server: file watcher error: %v\n", err)
		}
	}
}
