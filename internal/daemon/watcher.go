package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDefault = 200 * time.Millisecond
	workersDefault  = 4
	queueSize       = 200
	pollDefault     = 2 * time.Second
)

// Handler applies one request file. It owns moving the file out of the inbox.
type Handler func(path string)

// Watcher feeds inbox files to a Handler until its context is cancelled.
type Watcher interface {
	Run(ctx context.Context) error
}

// safeHandle runs h and turns a panic into a log line so one bad file
// cannot stop the daemon.
func safeHandle(h Handler, path string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "daemon: panic processing %s: %v\n", filepath.Base(path), r)
		}
	}()
	h(path)
}

// pool is a fixed set of workers draining a bounded queue.
type pool struct {
	queue chan string
	wg    sync.WaitGroup
}

func startPool(workers int, h Handler) *pool {
	p := &pool{queue: make(chan string, queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for path := range p.queue {
				safeHandle(h, path)
			}
		}()
	}
	return p
}

// submit queues paths in order. It gives up when ctx is done.
func (p *pool) submit(ctx context.Context, paths []string) {
	for _, path := range paths {
		select {
		case p.queue <- path:
		case <-ctx.Done():
			return
		}
	}
}

// drain waits for queued work to finish.
func (p *pool) drain() {
	close(p.queue)
	p.wg.Wait()
}

// InboxWatcher reacts to fsnotify create events. Events are debounced into
// batches, sorted by name and handed to a worker pool; with more than one
// worker, files of a batch may be applied concurrently.
type InboxWatcher struct {
	inbox    string
	handler  Handler
	debounce time.Duration
	workers  int
}

// NewInboxWatcher creates a watcher for inbox. workers <= 0 selects the
// default pool size.
func NewInboxWatcher(inbox string, handler Handler, workers int) *InboxWatcher {
	if workers <= 0 {
		workers = workersDefault
	}
	return &InboxWatcher{inbox: inbox, handler: handler, debounce: debounceDefault, workers: workers}
}

// Run blocks until ctx is cancelled. Work already queued is finished first.
func (w *InboxWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.inbox); err != nil {
		return err
	}

	workers := startPool(w.workers, w.handler)
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	flush := func() {
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		clear(pending)
		sort.Strings(batch)
		workers.submit(ctx, batch)
	}
	defer func() {
		timer.Stop()
		flush()
		workers.drain()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isRequestFile(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "daemon: watch %s: %v\n", w.inbox, err)
		}
	}
}

// PollWatcher lists the inbox on a ticker, for filesystems without inotify
// (NFS, some container mounts). Files are applied one at a time in name
// order, so a session's files are applied in the order they are named.
type PollWatcher struct {
	inbox    string
	handler  Handler
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling watcher. A zero interval selects the default.
func NewPollWatcher(inbox string, handler Handler, interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = pollDefault
	}
	return &PollWatcher{inbox: inbox, handler: handler, interval: interval, seen: make(map[string]bool)}
}

// Run blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PollWatcher) scan() {
	paths, err := requestFiles(w.inbox)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon: poll %s: %v\n", w.inbox, err)
		return
	}
	present := make(map[string]bool, len(paths))
	for _, path := range paths {
		present[path] = true
		if !w.seen[path] {
			w.seen[path] = true
			safeHandle(w.handler, path)
		}
	}
	// A name that left the inbox may be reused by a later file.
	for path := range w.seen {
		if !present[path] {
			delete(w.seen, path)
		}
	}
}

// ScanExisting applies, in name order, request files that arrived while the
// daemon was down. A missing inbox is not an error.
func ScanExisting(inbox string, handler Handler) error {
	paths, err := requestFiles(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, path := range paths {
		safeHandle(handler, path)
	}
	return nil
}

// requestFiles lists request files in dir, sorted by name.
func requestFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && isRequestFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// isRequestFile reports whether path names a finished request: a visible
// .json file. Writers stage content under a .tmp or dot-prefixed name and
// rename it into place.
func isRequestFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
