// Copyright 2025 Tradeledger Authors
//
// Process-liveness file: on start the node writes its pid to
// <data-dir>/process-id and takes an OS advisory lock on it. A second
// instance pointed at the same data directory fails to acquire the lock
// and must abort.
package proclock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// FileName is the liveness file's name inside the data directory.
const FileName = "process-id"

// ErrAlreadyRunning is returned by Acquire when another process holds the
// advisory lock, meaning a duplicate instance is running against the same
// data directory.
var ErrAlreadyRunning = errors.New("proclock: another instance holds the process-id lock")

// Lock is a held process-liveness lock. It stays valid until Release or
// process exit.
type Lock struct {
	file *os.File
	path string
}

// Acquire creates (or reuses) dataDir/process-id, takes an exclusive
// non-blocking advisory lock on it, and writes this process's pid. The
// lock is held for the life of the returned Lock.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("proclock: create data dir %s: %w", dataDir, err)
	}
	path := filepath.Join(dataDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("proclock: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
		}
		return nil, fmt.Errorf("proclock: lock %s: %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("proclock: truncate %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("proclock: write pid to %s: %w", path, err)
	}
	return &Lock{file: f, path: path}, nil
}

// Path returns the liveness file's location.
func (l *Lock) Path() string { return l.path }

// Release drops the advisory lock and closes the file. The file itself is
// left behind; a stale pid with no lock holder is harmless.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
