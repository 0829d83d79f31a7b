package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const dirPerm = 0750

// DirConfig is the daemon's directory layout. Request files move
// Inbox → State/processing → State/processed; results land in Results.
type DirConfig struct {
	Inbox   string
	Results string
	State   string
}

// ProcessingDir holds the file currently being applied.
func (d DirConfig) ProcessingDir() string { return filepath.Join(d.State, "processing") }

// ProcessedDir archives applied request files.
func (d DirConfig) ProcessedDir() string { return filepath.Join(d.State, "processed") }

// PIDFile is the daemon lock file.
func (d DirConfig) PIDFile() string { return filepath.Join(d.State, "daemon.pid") }

// EnsureDirs creates every directory of the layout. Idempotent.
func EnsureDirs(d DirConfig) error {
	for _, dir := range []string{d.Inbox, d.Results, d.ProcessingDir(), d.ProcessedDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// moveFile renames src to dst. Across devices (a bind-mounted inbox) it
// copies into a staging name next to dst, renames that into place and
// removes src, so dst is never seen half written.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	staged := dst + ".tmp"
	if err := copyFile(src, staged); err != nil {
		return err
	}
	if err := os.Rename(staged, dst); err != nil {
		_ = os.Remove(staged)
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst with src's permissions.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
