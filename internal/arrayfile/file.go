package arrayfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/molstore/internal/compression"
	"github.com/roach88/molstore/internal/fault"
)

// Mode selects how a file is opened.
type Mode int

const (
	// ReadOnly opens an existing file under a shared lock.
	ReadOnly Mode = iota
	// ReadWrite opens an existing file under an exclusive lock.
	ReadWrite
	// Create opens or creates a file under an exclusive lock.
	Create
)

func (m Mode) writable() bool { return m != ReadOnly }

// Options configures how a file is written back.
type Options struct {
	// Compression applies to newly created files; existing files keep the
	// algorithm recorded in their header.
	Compression compression.Type
}

// File is an open array file. The whole tree lives in memory between Open
// and Close.
type File struct {
	path        string
	mode        Mode
	compression compression.Type
	root        *Group
	lock        io.Closer
}

// LockPath returns the sidecar lock file guarding path.
func LockPath(path string) string {
	return path + ".lock"
}

// Open locks and loads the file at path. A lock held elsewhere yields a
// STORAGE_UNAVAILABLE error; WaitAvailable retries before opening.
func Open(path string, mode Mode, opts Options) (*File, error) {
	lock, err := lockFile(LockPath(path), mode.writable())
	if err != nil {
		return nil, fault.Unavailable(path, 1, err)
	}

	f := &File{path: path, mode: mode, compression: opts.Compression, lock: lock}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		root, ct, err := Unmarshal(data)
		if err != nil {
			_ = lock.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		f.root, f.compression = root, ct
	case errors.Is(err, fs.ErrNotExist) && mode == Create:
		f.root = NewRoot()
	default:
		_ = lock.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	slog.Debug("array file opened", "path", path, "mode", mode, "compression", f.compression)
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Compression returns the payload compression type.
func (f *File) Compression() compression.Type { return f.compression }

// Flush writes the tree to disk through a temporary file and a rename.
func (f *File) Flush() error {
	if !f.mode.writable() {
		return fmt.Errorf("flush %s: file is read-only", f.path)
	}
	if f.lock == nil {
		return fmt.Errorf("flush %s: file is closed", f.path)
	}
	data, err := Marshal(f.root, f.compression)
	if err != nil {
		return fmt.Errorf("flush %s: %w", f.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("flush %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: write: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: sync: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush %s: close: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("flush %s: rename: %w", f.path, err)
	}
	slog.Debug("array file flushed", "path", f.path, "bytes", len(data))
	return nil
}

// Close flushes writable files and releases the lock. The lock is released
// even when the flush fails. Closing twice is a no-op.
func (f *File) Close() error {
	if f.lock == nil {
		return nil
	}
	var flushErr error
	if f.mode.writable() {
		flushErr = f.Flush()
	}
	lockErr := f.lock.Close()
	f.lock = nil
	return errors.Join(flushErr, lockErr)
}

// Discard releases the lock without writing anything back.
func (f *File) Discard() error {
	if f.lock == nil {
		return nil
	}
	err := f.lock.Close()
	f.lock = nil
	return err
}
