package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/budgetwatch/internal/session"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	Workers      int
	PollMode     bool
	PollInterval time.Duration
}

// Daemon watches the inbox directory and applies request files.
type Daemon struct {
	cfg       Config
	processor *Processor
}

// New creates a daemon with validated configuration.
func New(cfg Config, mgr *session.Manager) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Results == "" || cfg.Dirs.State == "" {
		return nil, fmt.Errorf("inbox, results, and state directories are required")
	}
	if mgr == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	return &Daemon{
		cfg:       cfg,
		processor: NewProcessor(cfg.Dirs, mgr),
	}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled.
// On startup, processes any existing inbox files and orphaned processing files.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := d.cfg.Dirs.PIDFile()
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer releasePIDLock(pidPath)

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: process %s: %v\n", filepath.Base(path), err)
		}
	}

	// Existing files are applied in name order before watching starts.
	if err := ScanExisting(d.cfg.Dirs.Inbox, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	var w Watcher = NewInboxWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.Workers)
	mode := "fsnotify"
	if d.cfg.PollMode {
		w = NewPollWatcher(d.cfg.Dirs.Inbox, handler, d.cfg.PollInterval)
		mode = "poll every " + d.cfg.PollInterval.String()
	}
	fmt.Fprintf(os.Stderr, "daemon: watching %s (%s)\n", d.cfg.Dirs.Inbox, mode)
	return w.Run(ctx)
}

// recoverOrphans writes failed results for files left in state/processing/.
// Sessions live in memory only, so an interrupted file cannot be resumed.
func (d *Daemon) recoverOrphans() error {
	procDir := d.cfg.Dirs.ProcessingDir()
	entries, err := os.ReadDir(procDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isRequestFile(e.Name()) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		result := failed(id, "interrupted: file was processing when daemon stopped")
		if err := d.processor.writeResult(result); err != nil {
			fmt.Fprintf(os.Stderr, "daemon: recover orphan %s: %v\n", id, err)
		}
		_ = os.Remove(filepath.Join(procDir, e.Name()))
	}
	return nil
}

// acquirePIDLock records this process in path. A lock held by a live
// process is refused; one left by a dead process is taken over.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && processAlive(pid) {
			return fmt.Errorf("another daemon is running (PID %d)", pid)
		}
		fmt.Fprintf(os.Stderr, "daemon: removing stale lock %s\n", path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}

// releasePIDLock removes path if it still names this process.
func releasePIDLock(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if strings.TrimSpace(string(data)) == strconv.Itoa(os.Getpid()) {
		_ = os.Remove(path)
	}
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
