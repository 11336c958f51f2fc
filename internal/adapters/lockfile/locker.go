// Package lockfile provides the per-hostname single-flight lock. The lock
// is an OS-level file lock, so it also excludes concurrent runs started by
// overlapping scheduler invocations.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/example/certward/internal/ports/secondary"
)

// Locker implements secondary.RunLock with one lock file per hostname.
type Locker struct {
	dir string
}

// NewLocker creates a locker rooted at dir.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// TryAcquire takes the hostname lock without blocking.
func (l *Locker) TryAcquire(hostname string) (secondary.HeldLock, error) {
	if err := os.MkdirAll(l.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(l.dir, hostname+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to take lock for %s: %w", hostname, err)
	}
	if !locked {
		return nil, secondary.ErrLockBusy
	}

	return &heldLock{fl: fl}, nil
}

// heldLock wraps the acquired flock. Release is idempotent so the run
// controller can release on every exit path without bookkeeping.
type heldLock struct {
	fl   *flock.Flock
	once sync.Once
}

func (h *heldLock) Release() error {
	var err error
	h.once.Do(func() {
		err = h.fl.Unlock()
	})
	return err
}

// Ensure Locker implements the interface
var _ secondary.RunLock = (*Locker)(nil)
